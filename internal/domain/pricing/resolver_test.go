package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drme990/manasik-v2-sub000/internal/domain/product"
)

func testProduct() *product.Product {
	return &product.Product{
		ID:           "pkg-gold",
		Name:         "Gold Package",
		BaseCurrency: "USD",
		BasePrice:    decimal.RequireFromString("1500.00"),
		Prices: []product.CurrencyPrice{
			{Currency: "EGP", Amount: decimal.RequireFromString("72750.00")},
			{Currency: "SAR", Amount: decimal.RequireFromString("5625.00"), Manual: true},
		},
		Sizes: []product.Size{
			{
				ID:        "double",
				Label:     "Double room",
				BasePrice: decimal.RequireFromString("1200.00"),
				HasBase:   true,
				Prices: []product.CurrencyPrice{
					{Currency: "EGP", Amount: decimal.RequireFromString("58200.00")},
				},
			},
			{ID: "quad", Label: "Quad room"},
		},
	}
}

func TestResolveUnitPrice_ExplicitCurrency(t *testing.T) {
	got, err := ResolveUnitPrice(testProduct(), "", "egp")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("72750.00").Equal(got))
}

func TestResolveUnitPrice_BaseCurrencyFallback(t *testing.T) {
	got, err := ResolveUnitPrice(testProduct(), "", "USD")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1500.00").Equal(got))
}

func TestResolveUnitPrice_SizePriceWins(t *testing.T) {
	got, err := ResolveUnitPrice(testProduct(), "double", "EGP")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("58200.00").Equal(got))
}

func TestResolveUnitPrice_SizeBasePrice(t *testing.T) {
	got, err := ResolveUnitPrice(testProduct(), "double", "USD")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1200.00").Equal(got))
}

func TestResolveUnitPrice_SizeInheritsProductBase(t *testing.T) {
	got, err := ResolveUnitPrice(testProduct(), "quad", "USD")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1500.00").Equal(got))
}

func TestResolveUnitPrice_UnknownSize(t *testing.T) {
	_, err := ResolveUnitPrice(testProduct(), "penthouse", "USD")
	require.ErrorIs(t, err, ErrSizeNotFound)
}

func TestResolveUnitPrice_UnavailableCurrencyListsOptions(t *testing.T) {
	_, err := ResolveUnitPrice(testProduct(), "", "JPY")

	var unavail *UnavailableError
	require.ErrorAs(t, err, &unavail)
	assert.Equal(t, "JPY", unavail.Requested)
	assert.Equal(t, []string{"EGP", "SAR", "USD"}, unavail.Available)
}

func TestResolveUnitPrice_NoImplicitConversion(t *testing.T) {
	// The size has no SAR price even though the product does; resolution must
	// not fall through to the product table for a sized purchase.
	_, err := ResolveUnitPrice(testProduct(), "double", "SAR")

	var unavail *UnavailableError
	require.ErrorAs(t, err, &unavail)
	assert.Equal(t, []string{"EGP", "USD"}, unavail.Available)
}
