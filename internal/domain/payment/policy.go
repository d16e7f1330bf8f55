// Package payment holds the partial-payment policy: given the discounted
// order amount and the customer's chosen option, it decides how much is paid
// now and how much remains. The policy is pure so it can be tested without a
// gateway or database.
package payment

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/drme990/manasik-v2-sub000/internal/domain/product"
)

// Option is the customer's payment choice.
type Option string

const (
	OptionFull   Option = "full"
	OptionHalf   Option = "half"
	OptionCustom Option = "custom"
)

var (
	two = decimal.NewFromInt(2)

	// ErrUnknownOption is returned for a payment option outside full/half/custom.
	ErrUnknownOption = errors.New("unknown payment option")
	// ErrPartialNotAllowed is returned when a custom amount is requested for a
	// product that does not allow partial payment.
	ErrPartialNotAllowed = errors.New("partial payment not allowed for this product")
)

// BelowMinimumError indicates the requested custom amount is under the
// computed floor.
type BelowMinimumError struct {
	Requested decimal.Decimal
	Minimum   decimal.Decimal
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("payment %s below minimum %s", e.Requested, e.Minimum)
}

// Plan is the resolved payment breakdown.
type Plan struct {
	PayNow    decimal.Decimal
	Remaining decimal.Decimal
	Partial   bool
}

// Compute resolves the payment plan for amountAfterDiscount in the given
// currency. custom is only consulted for OptionCustom. A custom amount that
// meets or exceeds the full amount is silently treated as a full payment.
func Compute(amountAfterDiscount decimal.Decimal, opt Option, custom decimal.Decimal, p *product.Product, currency string) (Plan, error) {
	switch opt {
	case OptionFull, "":
		return full(amountAfterDiscount), nil

	case OptionHalf:
		payNow := amountAfterDiscount.Div(two).Ceil()
		return Plan{
			PayNow:    payNow,
			Remaining: amountAfterDiscount.Sub(payNow),
			Partial:   true,
		}, nil

	case OptionCustom:
		if !p.PartialAllowed {
			return Plan{}, ErrPartialNotAllowed
		}

		minimum := minimumPayment(amountAfterDiscount, p.Minimum, currency)
		if custom.LessThan(minimum) {
			return Plan{}, &BelowMinimumError{Requested: custom, Minimum: minimum}
		}
		if custom.GreaterThanOrEqual(amountAfterDiscount) {
			return full(amountAfterDiscount), nil
		}
		return Plan{
			PayNow:    custom.Round(2),
			Remaining: amountAfterDiscount.Sub(custom.Round(2)),
			Partial:   true,
		}, nil
	}

	return Plan{}, errors.Wrapf(ErrUnknownOption, "%q", opt)
}

// minimumPayment computes the floor for a custom payment: either a
// percentage of the discounted amount (rounded up) or a per-currency fixed
// floor, per the product's configuration. A fixed-mode product with no floor
// for the currency falls back to the percentage.
func minimumPayment(amount decimal.Decimal, cfg product.MinimumPayment, currency string) decimal.Decimal {
	if cfg.Mode == product.MinimumFixed {
		if floor, ok := cfg.FixedFloors[strings.ToUpper(currency)]; ok {
			return floor
		}
	}
	return amount.Mul(cfg.Percentage).Div(decimal.NewFromInt(100)).Ceil()
}

func full(amount decimal.Decimal) Plan {
	return Plan{PayNow: amount, Remaining: decimal.Zero, Partial: false}
}
