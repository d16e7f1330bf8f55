package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/drme990/manasik-v2-sub000/internal/domain/coupon"
	"github.com/drme990/manasik-v2-sub000/internal/domain/payment"
	"github.com/drme990/manasik-v2-sub000/internal/domain/pricing"
	"github.com/drme990/manasik-v2-sub000/internal/domain/product"
)

// CouponService validates codes and consumes uses. Implemented by
// coupon.Validator.
type CouponService interface {
	Validate(ctx context.Context, code string, orderAmount decimal.Decimal, productID string) (decimal.Decimal, error)
	Apply(ctx context.Context, code string) error
}

// IntentItem is one purchasable line in a payment intention.
type IntentItem struct {
	Name        string
	AmountMinor int64
	Quantity    int
}

// IntentRequest carries everything the gateway needs to create an intention.
type IntentRequest struct {
	AmountMinor   int64
	Currency      string
	Items         []IntentItem
	Billing       BillingData
	Reference     string
	NotifyURL     string
	RedirectURL   string
	ExpirySeconds int
}

// PaymentIntent is the provider-side intent-to-pay object.
type PaymentIntent struct {
	IntentionID    string
	GatewayOrderID string
	ClientSecret   string
}

// PaymentGateway is the narrow surface of the payment provider used at
// checkout. Implemented by paymob.Client.
type PaymentGateway interface {
	// Configured reports whether the integration is usable; when false,
	// checkout degrades to creating a pending order with no checkout URL.
	Configured() bool
	CreateIntent(ctx context.Context, req IntentRequest) (*PaymentIntent, error)
	CheckoutURL(clientSecret string) string
}

// CheckoutRequest is the validated input for placing an order.
type CheckoutRequest struct {
	ProductID     string
	SizeID        string
	Quantity      int
	Currency      string
	Billing       BillingData
	CouponCode    string
	ReferralID    string
	PaymentOption payment.Option
	CustomAmount  decimal.Decimal
	AgreeTerms    bool
}

// CheckoutResult is the outcome of a checkout: the created order plus the
// gateway redirect, when the gateway is configured.
type CheckoutResult struct {
	Order       *Order
	CheckoutURL string
	IntentionID string
}

// ServiceConfig holds the non-dependency checkout settings.
type ServiceConfig struct {
	NotifyURL     string
	RedirectURL   string
	ExpirySeconds int
}

// Service orchestrates checkout: price resolution, coupon validation, the
// partial-payment policy, order creation, and gateway intention creation.
type Service struct {
	cfg      ServiceConfig
	products product.Repository
	coupons  CouponService
	orders   Repository
	gateway  PaymentGateway
	now      func() time.Time
}

// NewService creates a checkout Service with the required dependencies.
func NewService(
	cfg ServiceConfig,
	products product.Repository,
	coupons CouponService,
	orders Repository,
	gateway PaymentGateway,
) *Service {
	return &Service{
		cfg:      cfg,
		products: products,
		coupons:  coupons,
		orders:   orders,
		gateway:  gateway,
		now:      time.Now,
	}
}

// Checkout places an order and, when the gateway is configured, creates the
// payment intention and returns the hosted checkout URL.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if !req.AgreeTerms {
		return nil, ErrTermsNotAgreed
	}
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if !req.Billing.Complete() {
		return nil, ErrMissingBilling
	}

	p, err := s.products.GetByID(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %s", req.ProductID)
	}
	if p.Stock < req.Quantity {
		return nil, product.ErrOutOfStock
	}

	unitPrice, err := pricing.ResolveUnitPrice(p, req.SizeID, req.Currency)
	if err != nil {
		return nil, err
	}
	fullAmount := unitPrice.Mul(decimal.NewFromInt(int64(req.Quantity))).Round(2)

	discount := decimal.Zero
	couponCode := ""
	if req.CouponCode != "" {
		couponCode = coupon.NormalizeCode(req.CouponCode)
		discount, err = s.coupons.Validate(ctx, couponCode, fullAmount, p.ID)
		if err != nil {
			return nil, err
		}
	}
	afterDiscount := fullAmount.Sub(discount)

	plan, err := payment.Compute(afterDiscount, req.PaymentOption, req.CustomAmount, p, req.Currency)
	if err != nil {
		return nil, err
	}

	now := s.now()
	o := &Order{
		ID:              uuid.New().String(),
		ProductID:       p.ID,
		SizeID:          req.SizeID,
		Quantity:        req.Quantity,
		Currency:        normalizeCurrency(req.Currency),
		FullAmount:      fullAmount,
		CouponDiscount:  discount,
		PaidAmount:      plan.PayNow,
		RemainingAmount: plan.Remaining,
		PartialPayment:  plan.Partial,
		Status:          StatusPending,
		CouponCode:      couponCode,
		ReferralID:      req.ReferralID,
		Billing:         req.Billing,
		TermsAgreedAt:   now,
		CreatedAt:       now,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	if couponCode != "" {
		// The order exists: a failed usage count is an accounting gap, not a
		// reason to abort the customer's payment.
		if err := s.coupons.Apply(ctx, couponCode); err != nil {
			zctx.From(ctx).Warn("Coupon usage increment failed",
				zap.String("order_id", o.ID),
				zap.String("coupon", couponCode),
				zap.Error(err),
			)
		}
	}

	if !s.gateway.Configured() {
		zctx.From(ctx).Info("Gateway not configured, order left pending",
			zap.String("order_id", o.ID),
			zap.String("order_number", o.Number),
		)
		return &CheckoutResult{Order: o}, nil
	}

	intent, err := s.gateway.CreateIntent(ctx, IntentRequest{
		AmountMinor: minorUnits(plan.PayNow),
		Currency:    o.Currency,
		Items: []IntentItem{{
			Name:        p.Name,
			AmountMinor: minorUnits(plan.PayNow),
			Quantity:    1,
		}},
		Billing:       req.Billing,
		Reference:     o.Number,
		NotifyURL:     s.cfg.NotifyURL,
		RedirectURL:   s.cfg.RedirectURL,
		ExpirySeconds: s.cfg.ExpirySeconds,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create payment intention")
	}

	if err := s.orders.MarkProcessing(ctx, o.ID, intent.GatewayOrderID, intent.IntentionID); err != nil {
		return nil, errors.Wrap(err, "mark order processing")
	}
	o.Status = StatusProcessing
	o.GatewayOrderID = intent.GatewayOrderID
	o.IntentionID = intent.IntentionID

	return &CheckoutResult{
		Order:       o,
		CheckoutURL: s.gateway.CheckoutURL(intent.ClientSecret),
		IntentionID: intent.IntentionID,
	}, nil
}

// minorUnits converts a 2-decimal amount to minor currency units (cents).
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func normalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
