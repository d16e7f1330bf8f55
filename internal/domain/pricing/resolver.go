// Package pricing resolves a product (or one of its sizes) and a requested
// currency to a payable unit price. It never converts between currencies:
// a missing price for the requested currency is a hard error, and the
// per-currency tables are maintained out of band (see cmd/rate-sync).
package pricing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/drme990/manasik-v2-sub000/internal/domain/product"
)

// ErrSizeNotFound is returned when the requested size does not exist on the
// product.
var ErrSizeNotFound = errors.New("size not found")

// UnavailableError indicates the product has no price in the requested
// currency. Available lists the currencies that would have worked.
type UnavailableError struct {
	Requested string
	Available []string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("price unavailable in %s (available: %s)",
		e.Requested, strings.Join(e.Available, ", "))
}

// ResolveUnitPrice returns the unit price of the product (or the selected
// size when sizeID is non-empty) in the requested currency.
//
// Resolution order: an explicit price for that exact currency on the
// size/product, then the base price when the requested currency equals the
// product's base currency. Anything else is an UnavailableError.
func ResolveUnitPrice(p *product.Product, sizeID, requested string) (decimal.Decimal, error) {
	requested = strings.ToUpper(strings.TrimSpace(requested))

	prices := p.Prices
	base := p.BasePrice
	if sizeID != "" {
		size := p.SizeByID(sizeID)
		if size == nil {
			return decimal.Zero, errors.Wrapf(ErrSizeNotFound, "%s", sizeID)
		}
		prices = size.Prices
		if size.HasBase {
			base = size.BasePrice
		}
	}

	for _, cp := range prices {
		if strings.EqualFold(cp.Currency, requested) {
			return cp.Amount, nil
		}
	}

	if strings.EqualFold(p.BaseCurrency, requested) {
		return base, nil
	}

	return decimal.Zero, &UnavailableError{
		Requested: requested,
		Available: availableCurrencies(p.BaseCurrency, prices),
	}
}

func availableCurrencies(base string, prices []product.CurrencyPrice) []string {
	seen := map[string]struct{}{strings.ToUpper(base): {}}
	for _, cp := range prices {
		seen[strings.ToUpper(cp.Currency)] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for code := range seen {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
