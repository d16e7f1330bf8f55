package country

import "context"

// Country is a billing country with its active checkout currency.
type Country struct {
	Code     string
	Name     string
	Currency string
	Active   bool
}

// Repository defines read operations for the country list.
type Repository interface {
	// ActiveCurrencies returns the distinct upper-case currency codes of all
	// active countries.
	ActiveCurrencies(ctx context.Context) ([]string, error)
}
