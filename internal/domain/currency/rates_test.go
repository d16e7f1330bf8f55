package currency

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSource struct {
	rates   map[string]decimal.Decimal
	err     error
	fetches int
}

func (m *mockSource) Fetch(_ context.Context, _ string) (map[string]decimal.Decimal, error) {
	m.fetches++
	if m.err != nil {
		return nil, m.err
	}
	return m.rates, nil
}

func usdRates() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"eur": decimal.RequireFromString("0.92"),
		"EGP": decimal.RequireFromString("48.5"),
	}
}

func TestRates_FetchNormalizesAndCaches(t *testing.T) {
	src := &mockSource{rates: usdRates()}
	svc := NewService(src, NewMemoryCache(), 6*time.Hour)

	rates, err := svc.Rates(context.Background(), "usd")
	require.NoError(t, err)
	assert.Contains(t, rates, "EUR")
	assert.Contains(t, rates, "EGP")

	// Second call is served from the fresh snapshot.
	_, err = svc.Rates(context.Background(), "USD")
	require.NoError(t, err)
	assert.Equal(t, 1, src.fetches)
}

func TestRates_ExpiredSnapshotRefetches(t *testing.T) {
	src := &mockSource{rates: usdRates()}
	svc := NewService(src, NewMemoryCache(), 6*time.Hour)

	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	_, err := svc.Rates(context.Background(), "USD")
	require.NoError(t, err)

	now = now.Add(7 * time.Hour)
	_, err = svc.Rates(context.Background(), "USD")
	require.NoError(t, err)
	assert.Equal(t, 2, src.fetches)
}

func TestRates_StaleFallbackOnFetchFailure(t *testing.T) {
	src := &mockSource{rates: usdRates()}
	svc := NewService(src, NewMemoryCache(), 6*time.Hour)

	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	_, err := svc.Rates(context.Background(), "USD")
	require.NoError(t, err)

	// Snapshot expires, upstream goes down: the stale snapshot is served.
	now = now.Add(24 * time.Hour)
	src.err = errors.New("connection refused")

	rates, err := svc.Rates(context.Background(), "USD")
	require.NoError(t, err)
	assert.Contains(t, rates, "EUR")
}

func TestRates_NoSnapshotAndFetchFailure(t *testing.T) {
	src := &mockSource{err: errors.New("connection refused")}
	svc := NewService(src, NewMemoryCache(), 6*time.Hour)

	_, err := svc.Rates(context.Background(), "USD")
	require.ErrorIs(t, err, ErrRateSourceUnavailable)
}

func TestConvert_Identity(t *testing.T) {
	src := &mockSource{rates: usdRates()}
	svc := NewService(src, NewMemoryCache(), 6*time.Hour)

	amount := decimal.RequireFromString("123.45")
	got, err := svc.Convert(context.Background(), amount, "USD", "usd")
	require.NoError(t, err)
	assert.True(t, amount.Equal(got))
	assert.Equal(t, 0, src.fetches, "identity conversion must not hit the source")
}

func TestConvert_RoundsToTwoPlaces(t *testing.T) {
	src := &mockSource{rates: map[string]decimal.Decimal{
		"EUR": decimal.RequireFromString("0.9177"),
	}}
	svc := NewService(src, NewMemoryCache(), 6*time.Hour)

	got, err := svc.Convert(context.Background(), decimal.RequireFromString("10"), "USD", "EUR")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("9.18").Equal(got), "got %s", got)
}

func TestConvert_NoRate(t *testing.T) {
	src := &mockSource{rates: usdRates()}
	svc := NewService(src, NewMemoryCache(), 6*time.Hour)

	_, err := svc.Convert(context.Background(), decimal.NewFromInt(10), "USD", "JPY")
	require.ErrorIs(t, err, ErrNoRate)
}

func TestConvertMany_OmitsUnknownTargets(t *testing.T) {
	src := &mockSource{rates: usdRates()}
	svc := NewService(src, NewMemoryCache(), 6*time.Hour)

	got, err := svc.ConvertMany(context.Background(), decimal.NewFromInt(100), "USD",
		[]string{"EUR", "JPY", "USD"})
	require.NoError(t, err)

	assert.Len(t, got, 2)
	assert.True(t, decimal.RequireFromString("92").Equal(got["EUR"]))
	assert.True(t, decimal.NewFromInt(100).Equal(got["USD"]), "same-currency target passes through")
	assert.NotContains(t, got, "JPY")
}
