// rate-sync refreshes the per-currency price tables from the upstream
// exchange rate source. It converts every product's base price into each
// active checkout currency and upserts the result, leaving manual overrides
// untouched. Run it from cron or a scheduler.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/drme990/manasik-v2-sub000/internal/domain/currency"
	"github.com/drme990/manasik-v2-sub000/internal/domain/product"
	"github.com/drme990/manasik-v2-sub000/internal/ratesource"
	"github.com/drme990/manasik-v2-sub000/internal/redisx"
	"github.com/drme990/manasik-v2-sub000/internal/repository"
)

const syncWorkers = 4

func main() {
	var (
		databaseURL string
		redisURL    string
		ratesURL    string
		ttl         time.Duration
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&redisURL, "redis-url", "", "Redis URL for the rate snapshot cache (or REDIS_URL env)")
	flag.StringVar(&ratesURL, "rates-url", "https://open.er-api.com/v6/latest", "exchange rate API base URL")
	flag.DurationVar(&ttl, "rates-ttl", 6*time.Hour, "rate snapshot freshness window")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if redisURL == "" {
		redisURL = os.Getenv("REDIS_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, redisURL, ratesURL, ttl); err != nil {
		slog.Error("rate sync failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("rate sync completed")
}

func run(ctx context.Context, databaseURL, redisURL, ratesURL string, ttl time.Duration) error {
	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	var cache currency.Cache = currency.NewMemoryCache()
	if redisURL != "" {
		redisClient, err := redisx.Connect(ctx, redisURL)
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() { _ = redisClient.Close() }()
		cache = redisx.NewSnapshotCache(redisClient)
	}
	rates := currency.NewService(ratesource.New(ratesURL, 15*time.Second), cache, ttl)

	products := repository.NewProductRepository(pool)
	countries := repository.NewCountryRepository(pool)

	targets, err := countries.ActiveCurrencies(ctx)
	if err != nil {
		return errors.Wrap(err, "load active currencies")
	}
	if len(targets) == 0 {
		slog.Info("no active currencies, nothing to sync")
		return nil
	}

	catalog, err := products.List(ctx)
	if err != nil {
		return errors.Wrap(err, "load catalog")
	}

	slog.Info("syncing prices",
		slog.Int("products", len(catalog)),
		slog.Int("currencies", len(targets)),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(syncWorkers)
	for i := range catalog {
		p := catalog[i]
		g.Go(func() error {
			return syncProduct(ctx, rates, products, p, targets)
		})
	}
	return g.Wait()
}

// syncProduct converts the product's base price (and each size's own base
// price) into every target currency. The upsert leaves manual rows alone.
func syncProduct(
	ctx context.Context,
	rates *currency.Service,
	products *repository.ProductRepository,
	p product.Product,
	targets []string,
) error {
	converted, err := rates.ConvertMany(ctx, p.BasePrice, p.BaseCurrency, targets)
	if err != nil {
		return errors.Wrapf(err, "convert prices for %s", p.ID)
	}
	for cur, amount := range converted {
		if cur == p.BaseCurrency {
			continue
		}
		if err := products.UpsertAutoPrice(ctx, p.ID, "", cur, amount); err != nil {
			return err
		}
	}

	for _, s := range p.Sizes {
		if !s.HasBase {
			continue
		}
		sized, err := rates.ConvertMany(ctx, s.BasePrice, p.BaseCurrency, targets)
		if err != nil {
			return errors.Wrapf(err, "convert size prices for %s/%s", p.ID, s.ID)
		}
		for cur, amount := range sized {
			if cur == p.BaseCurrency {
				continue
			}
			if err := products.UpsertAutoPrice(ctx, p.ID, s.ID, cur, amount); err != nil {
				return err
			}
		}
	}

	slog.Info("product synced", slog.String("product", p.ID))
	return nil
}
