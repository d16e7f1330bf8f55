package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/drme990/manasik-v2-sub000/internal/domain/product"
)

const (
	queryProductByID = `
		SELECT id, name, base_currency, base_price, stock,
		       partial_allowed, minimum_mode, minimum_percentage
		FROM products
		WHERE id = $1`

	queryProducts = `
		SELECT id, name, base_currency, base_price, stock,
		       partial_allowed, minimum_mode, minimum_percentage
		FROM products
		ORDER BY id`

	queryProductSizes = `
		SELECT id, label, base_price
		FROM product_sizes
		WHERE product_id = $1
		ORDER BY id`

	queryProductPrices = `
		SELECT size_id, currency, amount, is_manual
		FROM product_prices
		WHERE product_id = $1
		ORDER BY size_id, currency`

	queryProductFloors = `
		SELECT currency, amount
		FROM product_minimum_floors
		WHERE product_id = $1`

	upsertAutoPrice = `
		INSERT INTO product_prices (product_id, size_id, currency, amount, is_manual)
		VALUES ($1, $2, $3, $4, FALSE)
		ON CONFLICT (product_id, size_id, currency)
		DO UPDATE SET amount = EXCLUDED.amount
		WHERE product_prices.is_manual = FALSE`
)

// ProductRepository loads the product catalog, including size variants,
// per-currency price tables and partial-payment floors.
type ProductRepository struct {
	pool *pgxpool.Pool
}

func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

var _ product.Repository = (*ProductRepository)(nil)

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	row := r.pool.QueryRow(ctx, queryProductByID, id)

	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "query product %s", id)
	}

	if err := r.hydrate(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, queryProducts)
	if err != nil {
		return nil, errors.Wrap(err, "query products")
	}
	defer rows.Close()

	var products []product.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan product")
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate products")
	}

	for i := range products {
		if err := r.hydrate(ctx, &products[i]); err != nil {
			return nil, err
		}
	}
	return products, nil
}

// UpsertAutoPrice writes an automatically converted price. Manual overrides
// win: the statement leaves is_manual rows untouched.
func (r *ProductRepository) UpsertAutoPrice(ctx context.Context, productID, sizeID, currency string, amount decimal.Decimal) error {
	if _, err := r.pool.Exec(ctx, upsertAutoPrice, productID, sizeID, currency, amount); err != nil {
		return errors.Wrapf(err, "upsert price %s/%s %s", productID, sizeID, currency)
	}
	return nil
}

func scanProduct(row pgx.Row) (*product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.BaseCurrency, &p.BasePrice, &p.Stock,
		&p.PartialAllowed, &p.Minimum.Mode, &p.Minimum.Percentage)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// hydrate attaches sizes, currency prices and minimum-payment floors.
func (r *ProductRepository) hydrate(ctx context.Context, p *product.Product) error {
	sizes, err := r.loadSizes(ctx, p.ID)
	if err != nil {
		return err
	}
	p.Sizes = sizes

	if err := r.loadPrices(ctx, p); err != nil {
		return err
	}

	floors, err := r.loadFloors(ctx, p.ID)
	if err != nil {
		return err
	}
	p.Minimum.FixedFloors = floors
	return nil
}

func (r *ProductRepository) loadSizes(ctx context.Context, productID string) ([]product.Size, error) {
	rows, err := r.pool.Query(ctx, queryProductSizes, productID)
	if err != nil {
		return nil, errors.Wrapf(err, "query sizes for %s", productID)
	}
	defer rows.Close()

	var sizes []product.Size
	for rows.Next() {
		var s product.Size
		var base *decimal.Decimal
		if err := rows.Scan(&s.ID, &s.Label, &base); err != nil {
			return nil, errors.Wrap(err, "scan size")
		}
		if base != nil {
			s.BasePrice = *base
			s.HasBase = true
		}
		sizes = append(sizes, s)
	}
	return sizes, rows.Err()
}

func (r *ProductRepository) loadPrices(ctx context.Context, p *product.Product) error {
	rows, err := r.pool.Query(ctx, queryProductPrices, p.ID)
	if err != nil {
		return errors.Wrapf(err, "query prices for %s", p.ID)
	}
	defer rows.Close()

	for rows.Next() {
		var sizeID string
		var cp product.CurrencyPrice
		if err := rows.Scan(&sizeID, &cp.Currency, &cp.Amount, &cp.Manual); err != nil {
			return errors.Wrap(err, "scan price")
		}
		if sizeID == "" {
			p.Prices = append(p.Prices, cp)
			continue
		}
		if s := p.SizeByID(sizeID); s != nil {
			s.Prices = append(s.Prices, cp)
		}
	}
	return rows.Err()
}

func (r *ProductRepository) loadFloors(ctx context.Context, productID string) (map[string]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx, queryProductFloors, productID)
	if err != nil {
		return nil, errors.Wrapf(err, "query floors for %s", productID)
	}
	defer rows.Close()

	floors := make(map[string]decimal.Decimal)
	for rows.Next() {
		var currency string
		var amount decimal.Decimal
		if err := rows.Scan(&currency, &amount); err != nil {
			return nil, errors.Wrap(err, "scan floor")
		}
		floors[currency] = amount
	}
	return floors, rows.Err()
}
