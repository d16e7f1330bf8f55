package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/drme990/manasik-v2-sub000/internal/domain/coupon"
)

const (
	queryCouponByCode = `
		SELECT code, discount_type, value, status, valid_from, valid_until,
		       max_uses, used_count, min_order_amount, max_discount_amount,
		       applicable_products
		FROM coupons
		WHERE code = $1`

	upsertCoupon = `
		INSERT INTO coupons (code, discount_type, value, status, max_uses,
		                     min_order_amount, max_discount_amount)
		VALUES ($1, $2, $3, 'active', $4, $5, $6)
		ON CONFLICT (code) DO UPDATE SET
			discount_type       = EXCLUDED.discount_type,
			value               = EXCLUDED.value,
			status              = EXCLUDED.status,
			max_uses            = EXCLUDED.max_uses,
			min_order_amount    = EXCLUDED.min_order_amount,
			max_discount_amount = EXCLUDED.max_discount_amount`

	// Guarded increment: the WHERE clause re-checks the limit so concurrent
	// redemptions can never push used_count past max_uses.
	incrementCouponUsage = `
		UPDATE coupons
		SET used_count = used_count + 1
		WHERE code = $1
		  AND status = 'active'
		  AND (max_uses = 0 OR used_count < max_uses)`
)

// CouponRepository backs coupon lookup and the atomic usage counter.
type CouponRepository struct {
	pool *pgxpool.Pool
}

func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

var _ coupon.Repository = (*CouponRepository)(nil)

func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	var c coupon.Coupon
	err := r.pool.QueryRow(ctx, queryCouponByCode, code).Scan(
		&c.Code, &c.Type, &c.Value, &c.Status, &c.ValidFrom, &c.ValidUntil,
		&c.MaxUses, &c.UsedCount, &c.MinOrderAmount, &c.MaxDiscountAmount,
		&c.Products,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, coupon.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "query coupon %s", code)
	}
	return &c, nil
}

// UpsertCoupon writes a coupon definition, reactivating and overwriting the
// rule when the code already exists. used_count is left alone.
func (r *CouponRepository) UpsertCoupon(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.pool.Exec(ctx, upsertCoupon,
		c.Code, c.Type, c.Value, c.MaxUses, c.MinOrderAmount, c.MaxDiscountAmount)
	if err != nil {
		return errors.Wrapf(err, "upsert coupon %s", c.Code)
	}
	return nil
}

func (r *CouponRepository) IncrementUsage(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, incrementCouponUsage, code)
	if err != nil {
		return errors.Wrapf(err, "increment usage for %s", code)
	}
	if tag.RowsAffected() == 0 {
		// Either the coupon vanished, was disabled, or the last use was
		// taken by a concurrent redemption.
		return coupon.ErrExhausted
	}
	return nil
}
