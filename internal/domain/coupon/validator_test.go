package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	coupon       *Coupon
	findErr      error
	incrementErr error
	incremented  []string
}

func (m *mockRepo) FindByCode(_ context.Context, code string) (*Coupon, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	if m.coupon == nil || m.coupon.Code != code {
		return nil, ErrNotFound
	}
	return m.coupon, nil
}

func (m *mockRepo) IncrementUsage(_ context.Context, code string) error {
	m.incremented = append(m.incremented, code)
	return m.incrementErr
}

func TestValidator_Validate(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	pastTime := fixedNow.Add(-24 * time.Hour)
	futureTime := fixedNow.Add(24 * time.Hour)

	tests := []struct {
		name        string
		coupon      *Coupon
		code        string
		orderAmount decimal.Decimal
		productID   string
		want        decimal.Decimal
		wantErr     error
	}{
		{
			name: "percentage discount",
			coupon: &Coupon{
				Code: "SAVE10", Type: TypePercentage, Status: StatusActive,
				Value: decimal.NewFromInt(10),
			},
			code:        "save10",
			orderAmount: decimal.NewFromInt(200),
			want:        decimal.NewFromInt(20),
		},
		{
			name: "percentage capped by max discount",
			coupon: &Coupon{
				Code: "SAVE10", Type: TypePercentage, Status: StatusActive,
				Value:             decimal.NewFromInt(10),
				MaxDiscountAmount: decimal.NewFromInt(80),
			},
			code:        "SAVE10",
			orderAmount: decimal.NewFromInt(1000),
			want:        decimal.NewFromInt(80),
		},
		{
			name: "fixed discount capped at order amount",
			coupon: &Coupon{
				Code: "FLAT500", Type: TypeFixed, Status: StatusActive,
				Value: decimal.NewFromInt(500),
			},
			code:        "FLAT500",
			orderAmount: decimal.NewFromInt(120),
			want:        decimal.NewFromInt(120),
		},
		{
			name: "percentage rounds to 2 decimals",
			coupon: &Coupon{
				Code: "ODD", Type: TypePercentage, Status: StatusActive,
				Value: decimal.RequireFromString("3.33"),
			},
			code:        "ODD",
			orderAmount: decimal.RequireFromString("99.99"),
			want:        decimal.RequireFromString("3.33"), // 3.329667 rounded
		},
		{
			name:        "unknown code",
			code:        "BOGUS",
			orderAmount: decimal.NewFromInt(100),
			wantErr:     ErrNotFound,
		},
		{
			name: "disabled coupon",
			coupon: &Coupon{
				Code: "OFF", Type: TypePercentage, Status: StatusDisabled,
				Value: decimal.NewFromInt(10),
			},
			code:        "OFF",
			orderAmount: decimal.NewFromInt(100),
			wantErr:     ErrInactive,
		},
		{
			name: "not yet valid",
			coupon: &Coupon{
				Code: "SOON", Type: TypePercentage, Status: StatusActive,
				Value: decimal.NewFromInt(10), ValidFrom: &futureTime,
			},
			code:        "SOON",
			orderAmount: decimal.NewFromInt(100),
			wantErr:     ErrOutsideWindow,
		},
		{
			name: "already over",
			coupon: &Coupon{
				Code: "LATE", Type: TypePercentage, Status: StatusActive,
				Value: decimal.NewFromInt(10), ValidUntil: &pastTime,
			},
			code:        "LATE",
			orderAmount: decimal.NewFromInt(100),
			wantErr:     ErrOutsideWindow,
		},
		{
			name: "exhausted",
			coupon: &Coupon{
				Code: "GONE", Type: TypePercentage, Status: StatusActive,
				Value: decimal.NewFromInt(10), MaxUses: 5, UsedCount: 5,
			},
			code:        "GONE",
			orderAmount: decimal.NewFromInt(100),
			wantErr:     ErrExhausted,
		},
		{
			name: "unlimited uses ignores used count",
			coupon: &Coupon{
				Code: "FOREVER", Type: TypeFixed, Status: StatusActive,
				Value: decimal.NewFromInt(5), MaxUses: 0, UsedCount: 9999,
			},
			code:        "FOREVER",
			orderAmount: decimal.NewFromInt(100),
			want:        decimal.NewFromInt(5),
		},
		{
			name: "below minimum order amount",
			coupon: &Coupon{
				Code: "BIG", Type: TypePercentage, Status: StatusActive,
				Value: decimal.NewFromInt(10), MinOrderAmount: decimal.NewFromInt(500),
			},
			code:        "BIG",
			orderAmount: decimal.NewFromInt(499),
			wantErr:     ErrBelowMinimumOrder,
		},
		{
			name: "product not on allow-list",
			coupon: &Coupon{
				Code: "GOLDONLY", Type: TypePercentage, Status: StatusActive,
				Value: decimal.NewFromInt(10), Products: []string{"pkg-gold"},
			},
			code:        "GOLDONLY",
			orderAmount: decimal.NewFromInt(100),
			productID:   "pkg-silver",
			wantErr:     ErrNotApplicable,
		},
		{
			name: "product on allow-list",
			coupon: &Coupon{
				Code: "GOLDONLY", Type: TypePercentage, Status: StatusActive,
				Value: decimal.NewFromInt(10), Products: []string{"pkg-gold"},
			},
			code:        "GOLDONLY",
			orderAmount: decimal.NewFromInt(100),
			productID:   "pkg-gold",
			want:        decimal.NewFromInt(10),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepo{coupon: tt.coupon}
			v := NewValidator(repo)
			v.now = func() time.Time { return fixedNow }

			got, err := v.Validate(context.Background(), tt.code, tt.orderAmount, tt.productID)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "expected %s, got %s", tt.want, got)
			assert.Empty(t, repo.incremented, "Validate must not consume uses")
		})
	}
}

func TestValidator_ApplyIncrementsOnce(t *testing.T) {
	repo := &mockRepo{}
	v := NewValidator(repo)

	require.NoError(t, v.Apply(context.Background(), " save10 "))
	assert.Equal(t, []string{"SAVE10"}, repo.incremented)
}

func TestValidator_ApplyPropagatesExhaustion(t *testing.T) {
	repo := &mockRepo{incrementErr: ErrExhausted}
	v := NewValidator(repo)

	err := v.Apply(context.Background(), "GONE")
	require.ErrorIs(t, err, ErrExhausted)
}

func TestValidator_LookupFailureWrapped(t *testing.T) {
	repo := &mockRepo{findErr: errors.New("db down")}
	v := NewValidator(repo)

	_, err := v.Validate(context.Background(), "ANY", decimal.NewFromInt(10), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup coupon")
}
