package currency

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrRateSourceUnavailable is returned when the upstream rate source is
	// unreachable and no cached snapshot exists to fall back on.
	ErrRateSourceUnavailable = errors.New("rate source unavailable")
	// ErrNoRate is returned when a conversion target has no known rate.
	ErrNoRate = errors.New("no exchange rate for currency")
)

// Source fetches a flat rate map for the given base currency from the
// upstream provider.
type Source interface {
	Fetch(ctx context.Context, base string) (map[string]decimal.Decimal, error)
}

// Cache stores serialized rate snapshots. Implementations must retain entries
// past their freshness window: stale snapshots are the fallback when the
// upstream source is down.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
}

// Snapshot is a cached rate table for one base currency. Freshness is decided
// by the service from FetchedAt, not by cache expiry.
type Snapshot struct {
	Base      string                     `json:"base"`
	Rates     map[string]decimal.Decimal `json:"rates"`
	FetchedAt time.Time                  `json:"fetched_at"`
}

// Service resolves and converts amounts between currencies using cached
// upstream exchange rates.
type Service struct {
	source Source
	cache  Cache
	ttl    time.Duration
	now    func() time.Time
}

// NewService creates a rate service with the given source, cache, and
// snapshot freshness window.
func NewService(source Source, cache Cache, ttl time.Duration) *Service {
	return &Service{
		source: source,
		cache:  cache,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Rates returns the rate map for the given base currency. A fresh cached
// snapshot is served directly; otherwise the upstream source is consulted and
// the result cached. When the fetch fails, a stale snapshot is served rather
// than discarded; with no snapshot at all, ErrRateSourceUnavailable.
func (s *Service) Rates(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	base = normalize(base)

	cached, found := s.lookup(ctx, base)
	if found && s.now().Sub(cached.FetchedAt) < s.ttl {
		return cached.Rates, nil
	}

	fetched, err := s.source.Fetch(ctx, base)
	if err != nil {
		if found {
			zctx.From(ctx).Warn("Rate fetch failed, serving stale snapshot",
				zap.String("base", base),
				zap.Time("fetched_at", cached.FetchedAt),
				zap.Error(err),
			)
			return cached.Rates, nil
		}
		return nil, errors.Wrap(ErrRateSourceUnavailable, err.Error())
	}

	rates := make(map[string]decimal.Decimal, len(fetched))
	for code, rate := range fetched {
		rates[normalize(code)] = rate
	}

	s.store(ctx, Snapshot{Base: base, Rates: rates, FetchedAt: s.now()})
	return rates, nil
}

// Convert converts amount from one currency to another, rounded half-up to 2
// decimal places. Identity conversions bypass the rate table entirely.
func (s *Service) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	from, to = normalize(from), normalize(to)
	if from == to {
		return amount, nil
	}

	rates, err := s.Rates(ctx, from)
	if err != nil {
		return decimal.Zero, err
	}

	rate, ok := rates[to]
	if !ok {
		return decimal.Zero, errors.Wrapf(ErrNoRate, "%s", to)
	}
	return amount.Mul(rate).Round(2), nil
}

// ConvertMany converts amount into each target currency. Targets with no
// known rate are omitted from the result instead of failing the batch.
func (s *Service) ConvertMany(ctx context.Context, amount decimal.Decimal, from string, targets []string) (map[string]decimal.Decimal, error) {
	from = normalize(from)

	rates, err := s.Rates(ctx, from)
	if err != nil {
		return nil, err
	}

	out := make(map[string]decimal.Decimal, len(targets))
	for _, target := range targets {
		target = normalize(target)
		if target == from {
			out[target] = amount
			continue
		}
		rate, ok := rates[target]
		if !ok {
			continue
		}
		out[target] = amount.Mul(rate).Round(2)
	}
	return out, nil
}

func (s *Service) lookup(ctx context.Context, base string) (Snapshot, bool) {
	raw, ok, err := s.cache.Get(ctx, cacheKey(base))
	if err != nil {
		zctx.From(ctx).Warn("Rate cache read failed", zap.String("base", base), zap.Error(err))
		return Snapshot{}, false
	}
	if !ok {
		return Snapshot{}, false
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		zctx.From(ctx).Warn("Corrupt rate snapshot dropped", zap.String("base", base), zap.Error(err))
		return Snapshot{}, false
	}
	return snap, true
}

func (s *Service) store(ctx context.Context, snap Snapshot) {
	raw, err := json.Marshal(snap)
	if err != nil {
		zctx.From(ctx).Warn("Rate snapshot marshal failed", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, cacheKey(snap.Base), raw); err != nil {
		// Cache failures degrade to fetching every time, nothing more.
		zctx.From(ctx).Warn("Rate cache write failed", zap.String("base", snap.Base), zap.Error(err))
	}
}

func cacheKey(base string) string {
	return "rates:" + base
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
