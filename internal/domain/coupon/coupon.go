package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported discount strategies.
type Type string

const (
	// TypePercentage discounts a percentage of the order amount.
	TypePercentage Type = "percentage"
	// TypeFixed discounts a fixed monetary amount.
	TypeFixed Type = "fixed"
)

// Status is the administrative lifecycle state of a coupon.
type Status string

const (
	StatusActive   Status = "active"
	StatusExpired  Status = "expired"
	StatusDisabled Status = "disabled"
)

var (
	// ErrNotFound is returned when a coupon code does not exist.
	ErrNotFound = errors.New("coupon not found")
	// ErrInactive is returned when a coupon exists but is expired or disabled
	// administratively.
	ErrInactive = errors.New("coupon is not active")
	// ErrOutsideWindow is returned when now is outside [ValidFrom, ValidUntil].
	ErrOutsideWindow = errors.New("coupon outside validity window")
	// ErrExhausted is returned when a coupon has no uses left.
	ErrExhausted = errors.New("coupon usage limit reached")
	// ErrBelowMinimumOrder is returned when the order amount is under the
	// coupon's minimum.
	ErrBelowMinimumOrder = errors.New("order amount below coupon minimum")
	// ErrNotApplicable is returned when the product is not on the coupon's
	// allow-list.
	ErrNotApplicable = errors.New("coupon not applicable to this product")
)

// Coupon is a discount rule. UsedCount only ever grows from this subsystem;
// all other fields are owned by the admin collaborator.
type Coupon struct {
	Code              string
	Type              Type
	Value             decimal.Decimal
	Status            Status
	ValidFrom         *time.Time
	ValidUntil        *time.Time
	MaxUses           int
	UsedCount         int
	MinOrderAmount    decimal.Decimal
	MaxDiscountAmount decimal.Decimal
	Products          []string
}

// Repository provides lookup and the atomic usage increment for coupons.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	// IncrementUsage bumps used_count by one in a single guarded statement.
	// It returns ErrExhausted when the coupon has no uses left, so concurrent
	// redemptions can never push used_count past max_uses.
	IncrementUsage(ctx context.Context, code string) error
}

// NormalizeCode canonicalizes a user-supplied coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
