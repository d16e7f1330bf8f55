package coupon

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Validator checks a coupon code against an order context and computes the
// bounded discount. Validation never mutates the coupon: usage is consumed
// separately via Apply, once the order is durably created.
type Validator struct {
	repo Repository
	now  func() time.Time
}

// NewValidator creates a Validator backed by the given Repository.
func NewValidator(repo Repository) *Validator {
	return &Validator{repo: repo, now: time.Now}
}

// Validate runs the eligibility checks in order, short-circuiting on the
// first failure, and returns the clamped discount amount.
func (v *Validator) Validate(ctx context.Context, code string, orderAmount decimal.Decimal, productID string) (decimal.Decimal, error) {
	c, err := v.repo.FindByCode(ctx, NormalizeCode(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return decimal.Zero, ErrNotFound
		}
		return decimal.Zero, errors.Wrap(err, "lookup coupon")
	}

	if c.Status != StatusActive {
		return decimal.Zero, ErrInactive
	}

	now := v.now()
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return decimal.Zero, ErrOutsideWindow
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return decimal.Zero, ErrOutsideWindow
	}

	if c.MaxUses > 0 && c.UsedCount >= c.MaxUses {
		return decimal.Zero, ErrExhausted
	}

	if c.MinOrderAmount.IsPositive() && orderAmount.LessThan(c.MinOrderAmount) {
		return decimal.Zero, ErrBelowMinimumOrder
	}

	if len(c.Products) > 0 && !slices.Contains(c.Products, productID) {
		return decimal.Zero, ErrNotApplicable
	}

	return computeDiscount(c, orderAmount), nil
}

// Apply consumes one use of the coupon. Must be called at most once per
// checkout attempt, after the order row exists.
func (v *Validator) Apply(ctx context.Context, code string) error {
	if err := v.repo.IncrementUsage(ctx, NormalizeCode(code)); err != nil {
		return errors.Wrap(err, "increment coupon usage")
	}
	return nil
}

// computeDiscount applies the coupon's strategy, then clamps: the cap first,
// then the order amount (a discount can never exceed what it discounts), and
// rounds to 2 decimal places.
func computeDiscount(c *Coupon, orderAmount decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch c.Type {
	case TypePercentage:
		amount = orderAmount.Mul(c.Value).Div(hundred)
	case TypeFixed:
		amount = c.Value
	default:
		return decimal.Zero
	}

	if c.MaxDiscountAmount.IsPositive() && amount.GreaterThan(c.MaxDiscountAmount) {
		amount = c.MaxDiscountAmount
	}
	if amount.GreaterThan(orderAmount) {
		amount = orderAmount
	}
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return amount.Round(2)
}
