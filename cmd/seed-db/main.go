// seed-db applies the schema and loads the catalog (products, sizes, prices,
// payment floors), the country list, and a starter coupon set from a JSON
// seed file. Intended for fresh environments and local development.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/drme990/manasik-v2-sub000/internal/repository"
)

type seedFile struct {
	Products  []seedProduct `json:"products"`
	Countries []seedCountry `json:"countries"`
	Coupons   []seedCoupon  `json:"coupons"`
}

type seedProduct struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	BaseCurrency   string            `json:"base_currency"`
	BasePrice      decimal.Decimal   `json:"base_price"`
	Stock          int               `json:"stock"`
	PartialAllowed bool              `json:"partial_allowed"`
	MinimumMode    string            `json:"minimum_mode"`
	MinimumPercent decimal.Decimal   `json:"minimum_percentage"`
	Floors         map[string]string `json:"minimum_floors"`
	Sizes          []seedSize        `json:"sizes"`
	Prices         map[string]string `json:"prices"`
}

type seedSize struct {
	ID        string            `json:"id"`
	Label     string            `json:"label"`
	BasePrice *decimal.Decimal  `json:"base_price"`
	Prices    map[string]string `json:"prices"`
}

type seedCountry struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
	Active   bool   `json:"active"`
}

type seedCoupon struct {
	Code              string          `json:"code"`
	Type              string          `json:"type"`
	Value             decimal.Decimal `json:"value"`
	MaxUses           int             `json:"max_uses"`
	MinOrderAmount    decimal.Decimal `json:"min_order_amount"`
	MaxDiscountAmount decimal.Decimal `json:"max_discount_amount"`
}

func main() {
	var (
		databaseURL string
		seedPath    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "db/seed/catalog.json", "path to seed JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedPath); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath string) error {
	data, err := os.ReadFile(seedPath)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse seed file")
	}

	slog.Info("connecting to database")
	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")
	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, seed.Products); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedCountries(ctx, pool, seed.Countries); err != nil {
		return errors.Wrap(err, "seed countries")
	}
	if err := seedCoupons(ctx, pool, seed.Coupons); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, products []seedProduct) error {
	for _, p := range products {
		_, err := pool.Exec(ctx, `
			INSERT INTO products (id, name, base_currency, base_price, stock,
			                      partial_allowed, minimum_mode, minimum_percentage)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				base_currency = EXCLUDED.base_currency,
				base_price = EXCLUDED.base_price,
				stock = EXCLUDED.stock,
				partial_allowed = EXCLUDED.partial_allowed,
				minimum_mode = EXCLUDED.minimum_mode,
				minimum_percentage = EXCLUDED.minimum_percentage`,
			p.ID, p.Name, p.BaseCurrency, p.BasePrice, p.Stock,
			p.PartialAllowed, p.MinimumMode, p.MinimumPercent,
		)
		if err != nil {
			return errors.Wrapf(err, "insert product %s", p.ID)
		}

		for currency, amount := range p.Floors {
			if _, err := pool.Exec(ctx, `
				INSERT INTO product_minimum_floors (product_id, currency, amount)
				VALUES ($1, $2, $3)
				ON CONFLICT (product_id, currency) DO UPDATE SET amount = EXCLUDED.amount`,
				p.ID, currency, amount,
			); err != nil {
				return errors.Wrapf(err, "insert floor %s/%s", p.ID, currency)
			}
		}

		if err := seedPrices(ctx, pool, p.ID, "", p.Prices); err != nil {
			return err
		}

		for _, s := range p.Sizes {
			if _, err := pool.Exec(ctx, `
				INSERT INTO product_sizes (product_id, id, label, base_price)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (product_id, id) DO UPDATE SET
					label = EXCLUDED.label,
					base_price = EXCLUDED.base_price`,
				p.ID, s.ID, s.Label, s.BasePrice,
			); err != nil {
				return errors.Wrapf(err, "insert size %s/%s", p.ID, s.ID)
			}
			if err := seedPrices(ctx, pool, p.ID, s.ID, s.Prices); err != nil {
				return err
			}
		}

		slog.Info("product seeded", slog.String("product", p.ID))
	}
	return nil
}

// seedPrices writes manual price rows: seeded prices are admin-authored and
// must survive rate-sync runs.
func seedPrices(ctx context.Context, pool *pgxpool.Pool, productID, sizeID string, prices map[string]string) error {
	for currency, amount := range prices {
		if _, err := pool.Exec(ctx, `
			INSERT INTO product_prices (product_id, size_id, currency, amount, is_manual)
			VALUES ($1, $2, $3, $4, TRUE)
			ON CONFLICT (product_id, size_id, currency) DO UPDATE SET
				amount = EXCLUDED.amount,
				is_manual = TRUE`,
			productID, sizeID, currency, amount,
		); err != nil {
			return errors.Wrapf(err, "insert price %s/%s %s", productID, sizeID, currency)
		}
	}
	return nil
}

func seedCountries(ctx context.Context, pool *pgxpool.Pool, countries []seedCountry) error {
	for _, c := range countries {
		if _, err := pool.Exec(ctx, `
			INSERT INTO countries (code, name, currency, active)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (code) DO UPDATE SET
				name = EXCLUDED.name,
				currency = EXCLUDED.currency,
				active = EXCLUDED.active`,
			c.Code, c.Name, c.Currency, c.Active,
		); err != nil {
			return errors.Wrapf(err, "insert country %s", c.Code)
		}
	}
	slog.Info("countries seeded", slog.Int("count", len(countries)))
	return nil
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool, coupons []seedCoupon) error {
	for _, c := range coupons {
		if _, err := pool.Exec(ctx, `
			INSERT INTO coupons (code, discount_type, value, status, max_uses,
			                     min_order_amount, max_discount_amount)
			VALUES ($1, $2, $3, 'active', $4, $5, $6)
			ON CONFLICT (code) DO NOTHING`,
			c.Code, c.Type, c.Value, c.MaxUses, c.MinOrderAmount, c.MaxDiscountAmount,
		); err != nil {
			return errors.Wrapf(err, "insert coupon %s", c.Code)
		}
	}
	slog.Info("coupons seeded", slog.Int("count", len(coupons)))
	return nil
}
