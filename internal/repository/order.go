package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/drme990/manasik-v2-sub000/internal/domain/order"
	"github.com/drme990/manasik-v2-sub000/internal/domain/product"
)

const (
	// Monthly counter bump. INSERT ... ON CONFLICT makes the first order of a
	// month and every later one go through the same atomic statement.
	nextOrderSequence = `
		INSERT INTO order_counters (year_month, counter)
		VALUES ($1, 1)
		ON CONFLICT (year_month)
		DO UPDATE SET counter = order_counters.counter + 1
		RETURNING counter`

	// Stock reservation; the WHERE guard makes overselling impossible under
	// concurrent checkouts.
	reserveStock = `
		UPDATE products
		SET stock = stock - $2
		WHERE id = $1 AND stock >= $2`

	insertOrder = `
		INSERT INTO orders (
			id, order_number, product_id, size_id, quantity,
			currency, full_amount, coupon_discount, paid_amount,
			remaining_amount, partial_payment, status,
			coupon_code, referral_id,
			billing_name, billing_email, billing_phone, billing_country,
			terms_agreed_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12,
			$13, $14,
			$15, $16, $17, $18,
			$19, $20, $20
		)`

	queryOrderByGatewayID = `
		SELECT id, order_number, product_id, size_id, quantity,
		       currency, full_amount, coupon_discount, paid_amount,
		       remaining_amount, partial_payment, status,
		       coupon_code, referral_id,
		       billing_name, billing_email, billing_phone, billing_country,
		       terms_agreed_at, gateway_order_id, intention_id,
		       transaction_id, payment_method, created_at, updated_at
		FROM orders
		WHERE gateway_order_id = $1`

	markOrderProcessing = `
		UPDATE orders
		SET status = 'processing', gateway_order_id = $2, intention_id = $3,
		    updated_at = now()
		WHERE id = $1 AND status = 'pending'`

	// Forward-only transaction apply. The CTE reads the previous status under
	// lock and the UPDATE only moves non-terminal orders (or restates the same
	// status), so late or replayed callbacks cannot regress a settled order.
	applyOrderTransaction = `
		WITH prev AS (
			SELECT status FROM orders WHERE id = $1 FOR UPDATE
		)
		UPDATE orders o
		SET status = CASE
		        WHEN prev.status IN ('pending', 'processing') OR prev.status = $2
		        THEN $2
		        ELSE prev.status
		    END,
		    transaction_id = $3,
		    payment_method = CASE WHEN $4 <> '' THEN $4 ELSE o.payment_method END,
		    last_callback  = $5,
		    updated_at     = now()
		FROM prev
		WHERE o.id = $1
		RETURNING prev.status, o.status`
)

// OrderRepository is the order ledger. Creation reserves stock and assigns
// the order number in one transaction; transaction callbacks are applied with
// a single forward-only statement.
type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

var _ order.Repository = (*OrderRepository)(nil)

func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var seq int64
	yearMonth := o.CreatedAt.Format("200601")
	if err := tx.QueryRow(ctx, nextOrderSequence, yearMonth).Scan(&seq); err != nil {
		return errors.Wrap(err, "next order sequence")
	}
	o.Number = order.FormatNumber(o.CreatedAt, seq)

	tag, err := tx.Exec(ctx, reserveStock, o.ProductID, o.Quantity)
	if err != nil {
		return errors.Wrapf(err, "reserve stock for %s", o.ProductID)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrOutOfStock
	}

	_, err = tx.Exec(ctx, insertOrder,
		o.ID, o.Number, o.ProductID, o.SizeID, o.Quantity,
		o.Currency, o.FullAmount, o.CouponDiscount, o.PaidAmount,
		o.RemainingAmount, o.PartialPayment, o.Status,
		o.CouponCode, o.ReferralID,
		o.Billing.FullName, o.Billing.Email, o.Billing.Phone, o.Billing.Country,
		o.TermsAgreedAt, o.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "insert order %s", o.Number)
	}

	return errors.Wrap(tx.Commit(ctx), "commit")
}

func (r *OrderRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*order.Order, error) {
	var o order.Order
	err := r.pool.QueryRow(ctx, queryOrderByGatewayID, gatewayOrderID).Scan(
		&o.ID, &o.Number, &o.ProductID, &o.SizeID, &o.Quantity,
		&o.Currency, &o.FullAmount, &o.CouponDiscount, &o.PaidAmount,
		&o.RemainingAmount, &o.PartialPayment, &o.Status,
		&o.CouponCode, &o.ReferralID,
		&o.Billing.FullName, &o.Billing.Email, &o.Billing.Phone, &o.Billing.Country,
		&o.TermsAgreedAt, &o.GatewayOrderID, &o.IntentionID,
		&o.TransactionID, &o.PaymentMethod, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "query order by gateway id %s", gatewayOrderID)
	}
	return &o, nil
}

func (r *OrderRepository) MarkProcessing(ctx context.Context, id, gatewayOrderID, intentionID string) error {
	tag, err := r.pool.Exec(ctx, markOrderProcessing, id, gatewayOrderID, intentionID)
	if err != nil {
		return errors.Wrapf(err, "mark order %s processing", id)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) ApplyTransaction(ctx context.Context, id string, upd order.TransactionUpdate) (order.Status, order.Status, error) {
	var prev, curr order.Status
	err := r.pool.QueryRow(ctx, applyOrderTransaction,
		id, upd.Status, upd.TransactionID, upd.PaymentMethod, upd.RawCallback,
	).Scan(&prev, &curr)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", order.ErrNotFound
	}
	if err != nil {
		return "", "", errors.Wrapf(err, "apply transaction to order %s", id)
	}
	return prev, curr, nil
}
