package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/drme990/manasik-v2-sub000/internal/domain/country"
)

const queryActiveCurrencies = `
	SELECT DISTINCT currency
	FROM countries
	WHERE active
	ORDER BY currency`

// CountryRepository exposes the set of currencies the catalog is sold in,
// derived from the active countries table.
type CountryRepository struct {
	pool *pgxpool.Pool
}

func NewCountryRepository(pool *pgxpool.Pool) *CountryRepository {
	return &CountryRepository{pool: pool}
}

var _ country.Repository = (*CountryRepository)(nil)

func (r *CountryRepository) ActiveCurrencies(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, queryActiveCurrencies)
	if err != nil {
		return nil, errors.Wrap(err, "query active currencies")
	}
	defer rows.Close()

	var currencies []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, errors.Wrap(err, "scan currency")
		}
		currencies = append(currencies, c)
	}
	return currencies, rows.Err()
}
