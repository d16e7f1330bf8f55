package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the order lifecycle state. Orders only move forward:
// pending -> processing -> one of the terminal states.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusPaid       Status = "paid"
	StatusFailed     Status = "failed"
	StatusRefunded   Status = "refunded"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusPaid, StatusFailed, StatusRefunded, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is allowed. Staying
// in place is always allowed, which is what makes webhook replay a no-op.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	return !s.Terminal()
}

var (
	// ErrNotFound is returned when an order cannot be located.
	ErrNotFound = errors.New("order not found")
	// ErrTermsNotAgreed is returned when checkout is attempted without the
	// terms-agreement flag.
	ErrTermsNotAgreed = errors.New("terms not agreed")
	// ErrInvalidQuantity is returned for a non-positive quantity.
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	// ErrMissingBilling is returned when required billing fields are absent.
	ErrMissingBilling = errors.New("billing data incomplete")
)

// BillingData is the customer snapshot copied onto the order at creation.
// It is never re-derived from the customer record afterwards.
type BillingData struct {
	FullName string
	Email    string
	Phone    string
	Country  string
}

// Complete reports whether all required billing fields are present.
func (b BillingData) Complete() bool {
	return b.FullName != "" && b.Email != "" && b.Phone != "" && b.Country != ""
}

// Order is the aggregate of record for one purchase.
//
// Money invariants, maintained by the checkout service and checked in tests:
// PaidAmount <= FullAmount - CouponDiscount, and RemainingAmount is the
// non-negative difference.
type Order struct {
	ID     string
	Number string

	ProductID string
	SizeID    string
	Quantity  int

	Currency        string
	FullAmount      decimal.Decimal
	CouponDiscount  decimal.Decimal
	PaidAmount      decimal.Decimal
	RemainingAmount decimal.Decimal
	PartialPayment  bool

	Status Status

	CouponCode string
	ReferralID string
	Billing    BillingData

	TermsAgreedAt time.Time

	GatewayOrderID string
	IntentionID    string
	TransactionID  string
	PaymentMethod  string
	LastCallback   []byte

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FormatNumber builds the human-readable order number for the given creation
// time and monthly sequence, e.g. MNK-202508-00042.
func FormatNumber(createdAt time.Time, seq int64) string {
	return fmt.Sprintf("MNK-%s-%05d", createdAt.Format("200601"), seq)
}

// TransactionUpdate is the idempotent write applied by the reconciler.
type TransactionUpdate struct {
	Status        Status
	TransactionID string
	PaymentMethod string
	RawCallback   []byte
}

// Repository defines persistence for orders. Implementations must make
// Create assign the order number from an atomic monthly counter and reserve
// stock in the same transaction, and must make ApplyTransaction a single
// forward-only statement so concurrent webhook deliveries converge.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*Order, error)
	// MarkProcessing records the gateway correlation ids and moves a pending
	// order to processing.
	MarkProcessing(ctx context.Context, id, gatewayOrderID, intentionID string) error
	// ApplyTransaction applies the update and returns the status before and
	// after. Terminal statuses are never regressed.
	ApplyTransaction(ctx context.Context, id string, upd TransactionUpdate) (prev, curr Status, err error)
}
