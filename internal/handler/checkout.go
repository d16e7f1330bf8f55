package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/drme990/manasik-v2-sub000/internal/domain/coupon"
	"github.com/drme990/manasik-v2-sub000/internal/domain/order"
	"github.com/drme990/manasik-v2-sub000/internal/domain/payment"
	"github.com/drme990/manasik-v2-sub000/internal/domain/pricing"
	"github.com/drme990/manasik-v2-sub000/internal/domain/product"
	"github.com/drme990/manasik-v2-sub000/internal/gateway/paymob"
)

type checkoutRequest struct {
	ProductID     string          `json:"product_id"`
	SizeID        string          `json:"size_id"`
	Quantity      int             `json:"quantity"`
	Currency      string          `json:"currency"`
	FullName      string          `json:"full_name"`
	Email         string          `json:"email"`
	Phone         string          `json:"phone"`
	Country       string          `json:"country"`
	CouponCode    string          `json:"coupon_code"`
	ReferralID    string          `json:"referral_id"`
	PaymentOption string          `json:"payment_option"`
	CustomAmount  decimal.Decimal `json:"custom_amount"`
	AgreeTerms    bool            `json:"agree_terms"`
}

type checkoutOrder struct {
	ID              string `json:"id"`
	Number          string `json:"order_number"`
	Status          string `json:"status"`
	Currency        string `json:"currency"`
	FullAmount      string `json:"full_amount"`
	CouponDiscount  string `json:"coupon_discount"`
	PaidAmount      string `json:"paid_amount"`
	RemainingAmount string `json:"remaining_amount"`
	PartialPayment  bool   `json:"partial_payment"`
}

type checkoutResponse struct {
	Success     bool          `json:"success"`
	Order       checkoutOrder `json:"order"`
	CheckoutURL string        `json:"checkout_url,omitempty"`
	IntentionID string        `json:"intention_id,omitempty"`
}

// Checkout serves POST /api/checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.checkout.Checkout(r.Context(), order.CheckoutRequest{
		ProductID: req.ProductID,
		SizeID:    req.SizeID,
		Quantity:  req.Quantity,
		Currency:  req.Currency,
		Billing: order.BillingData{
			FullName: req.FullName,
			Email:    req.Email,
			Phone:    req.Phone,
			Country:  req.Country,
		},
		CouponCode:    req.CouponCode,
		ReferralID:    req.ReferralID,
		PaymentOption: payment.Option(req.PaymentOption),
		CustomAmount:  req.CustomAmount,
		AgreeTerms:    req.AgreeTerms,
	})
	if err != nil {
		h.writeCheckoutError(w, r, err)
		return
	}

	o := result.Order
	writeJSON(w, http.StatusCreated, checkoutResponse{
		Success: true,
		Order: checkoutOrder{
			ID:              o.ID,
			Number:          o.Number,
			Status:          string(o.Status),
			Currency:        o.Currency,
			FullAmount:      o.FullAmount.StringFixed(2),
			CouponDiscount:  o.CouponDiscount.StringFixed(2),
			PaidAmount:      o.PaidAmount.StringFixed(2),
			RemainingAmount: o.RemainingAmount.StringFixed(2),
			PartialPayment:  o.PartialPayment,
		},
		CheckoutURL: result.CheckoutURL,
		IntentionID: result.IntentionID,
	})
}

// writeCheckoutError maps domain errors onto HTTP statuses. Validation and
// policy violations are 400, a missing product or coupon 404, provider
// trouble 502.
func (h *Handler) writeCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, order.ErrTermsNotAgreed),
		errors.Is(err, order.ErrInvalidQuantity),
		errors.Is(err, order.ErrMissingBilling),
		errors.Is(err, product.ErrOutOfStock),
		errors.Is(err, pricing.ErrSizeNotFound),
		errors.Is(err, payment.ErrUnknownOption),
		errors.Is(err, payment.ErrPartialNotAllowed):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, coupon.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, coupon.ErrInactive),
		errors.Is(err, coupon.ErrOutsideWindow),
		errors.Is(err, coupon.ErrExhausted),
		errors.Is(err, coupon.ErrBelowMinimumOrder),
		errors.Is(err, coupon.ErrNotApplicable):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var unavailable *pricing.UnavailableError
	if errors.As(err, &unavailable) {
		writeError(w, http.StatusBadRequest, unavailable.Error())
		return
	}
	var belowMin *payment.BelowMinimumError
	if errors.As(err, &belowMin) {
		writeError(w, http.StatusBadRequest, belowMin.Error())
		return
	}
	var gatewayErr *paymob.RequestError
	if errors.As(err, &gatewayErr) {
		logUnexpected(r, err)
		writeError(w, http.StatusBadGateway, "payment gateway rejected the request")
		return
	}

	logUnexpected(r, err)
	writeError(w, http.StatusInternalServerError, "internal error")
}
