package payment

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drme990/manasik-v2-sub000/internal/domain/product"
)

func partialProduct() *product.Product {
	return &product.Product{
		ID:             "pkg-gold",
		PartialAllowed: true,
		Minimum: product.MinimumPayment{
			Mode:       product.MinimumPercentage,
			Percentage: decimal.NewFromInt(50),
		},
	}
}

func TestCompute_Full(t *testing.T) {
	amount := decimal.RequireFromString("920.00")

	plan, err := Compute(amount, OptionFull, decimal.Zero, partialProduct(), "USD")
	require.NoError(t, err)

	assert.True(t, amount.Equal(plan.PayNow))
	assert.True(t, plan.Remaining.IsZero())
	assert.False(t, plan.Partial)
}

func TestCompute_HalfRoundsUp(t *testing.T) {
	plan, err := Compute(decimal.NewFromInt(101), OptionHalf, decimal.Zero, partialProduct(), "USD")
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(51).Equal(plan.PayNow), "got %s", plan.PayNow)
	assert.True(t, decimal.NewFromInt(50).Equal(plan.Remaining), "got %s", plan.Remaining)
	assert.True(t, plan.Partial)
}

func TestCompute_CustomBelowMinimum(t *testing.T) {
	// 50% of 100 -> minimum 50; requesting 40 must fail.
	_, err := Compute(decimal.NewFromInt(100), OptionCustom, decimal.NewFromInt(40), partialProduct(), "USD")

	var below *BelowMinimumError
	require.ErrorAs(t, err, &below)
	assert.True(t, decimal.NewFromInt(50).Equal(below.Minimum))
}

func TestCompute_CustomValid(t *testing.T) {
	plan, err := Compute(decimal.NewFromInt(100), OptionCustom, decimal.NewFromInt(60), partialProduct(), "USD")
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(60).Equal(plan.PayNow))
	assert.True(t, decimal.NewFromInt(40).Equal(plan.Remaining))
	assert.True(t, plan.Partial)
}

func TestCompute_CustomAtOrAboveFullBecomesFull(t *testing.T) {
	for _, custom := range []int64{100, 150} {
		plan, err := Compute(decimal.NewFromInt(100), OptionCustom, decimal.NewFromInt(custom), partialProduct(), "USD")
		require.NoError(t, err)

		assert.True(t, decimal.NewFromInt(100).Equal(plan.PayNow))
		assert.True(t, plan.Remaining.IsZero())
		assert.False(t, plan.Partial)
	}
}

func TestCompute_CustomNotAllowed(t *testing.T) {
	p := partialProduct()
	p.PartialAllowed = false

	_, err := Compute(decimal.NewFromInt(100), OptionCustom, decimal.NewFromInt(60), p, "USD")
	require.ErrorIs(t, err, ErrPartialNotAllowed)
}

func TestCompute_FixedFloor(t *testing.T) {
	p := partialProduct()
	p.Minimum = product.MinimumPayment{
		Mode:       product.MinimumFixed,
		Percentage: decimal.NewFromInt(20),
		FixedFloors: map[string]decimal.Decimal{
			"USD": decimal.NewFromInt(300),
		},
	}

	_, err := Compute(decimal.NewFromInt(1000), OptionCustom, decimal.NewFromInt(250), p, "usd")
	var below *BelowMinimumError
	require.ErrorAs(t, err, &below)
	assert.True(t, decimal.NewFromInt(300).Equal(below.Minimum))

	// No floor for this currency: percentage fallback (20% of 1000 = 200).
	plan, err := Compute(decimal.NewFromInt(1000), OptionCustom, decimal.NewFromInt(250), p, "EUR")
	require.NoError(t, err)
	assert.True(t, plan.Partial)
}

func TestCompute_EmptyOptionDefaultsToFull(t *testing.T) {
	plan, err := Compute(decimal.NewFromInt(100), "", decimal.Zero, partialProduct(), "USD")
	require.NoError(t, err)
	assert.False(t, plan.Partial)
}

func TestCompute_UnknownOption(t *testing.T) {
	_, err := Compute(decimal.NewFromInt(100), "installments", decimal.Zero, partialProduct(), "USD")
	require.ErrorIs(t, err, ErrUnknownOption)
}
