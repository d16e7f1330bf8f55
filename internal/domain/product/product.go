package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrOutOfStock is returned when the requested quantity exceeds the
	// available stock.
	ErrOutOfStock = errors.New("product out of stock")
)

// MinimumMode selects how the floor for a custom partial payment is computed.
type MinimumMode string

const (
	// MinimumPercentage computes the floor as a percentage of the discounted
	// order amount.
	MinimumPercentage MinimumMode = "percentage"
	// MinimumFixed uses a per-currency fixed floor.
	MinimumFixed MinimumMode = "fixed"
)

// CurrencyPrice is an explicit price in one currency. Manual prices are admin
// overrides and are never rewritten by automatic conversion.
type CurrencyPrice struct {
	Currency string
	Amount   decimal.Decimal
	Manual   bool
}

// Size is a purchasable variant of a product. A size without its own base
// price inherits the product's. Sizes carry their own currency price table.
type Size struct {
	ID        string
	Label     string
	BasePrice decimal.Decimal
	HasBase   bool
	Prices    []CurrencyPrice
}

// MinimumPayment configures the floor for custom partial payments.
type MinimumPayment struct {
	Mode        MinimumMode
	Percentage  decimal.Decimal
	FixedFloors map[string]decimal.Decimal
}

// Product is a catalog item with its canonical price, per-currency price
// table, and partial-payment configuration.
type Product struct {
	ID             string
	Name           string
	BaseCurrency   string
	BasePrice      decimal.Decimal
	Stock          int
	PartialAllowed bool
	Minimum        MinimumPayment
	Prices         []CurrencyPrice
	Sizes          []Size
}

// SizeByID returns the size with the given id, or nil when the product has no
// such size.
func (p *Product) SizeByID(id string) *Size {
	for i := range p.Sizes {
		if p.Sizes[i].ID == id {
			return &p.Sizes[i]
		}
	}
	return nil
}

// Repository defines read operations for the product catalog.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context) ([]Product, error)
}
