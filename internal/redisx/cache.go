// Package redisx holds the Redis client constructor and the adapters that
// back domain caches with Redis when a REDIS_URL is configured.
package redisx

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/drme990/manasik-v2-sub000/internal/domain/currency"
)

// Connect parses a redis:// URL, opens a client and pings it once so
// misconfiguration surfaces at startup instead of on the first request.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

var _ currency.Cache = (*SnapshotCache)(nil)

// SnapshotCache stores rate snapshots in Redis without expiry. Freshness is
// the rate service's call; keeping stale entries is what enables the
// serve-stale fallback when the upstream source is down.
type SnapshotCache struct {
	client *redis.Client
}

// NewSnapshotCache wraps an existing Redis client.
func NewSnapshotCache(client *redis.Client) *SnapshotCache {
	return &SnapshotCache{client: client}
}

func (c *SnapshotCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "redis get %s", key)
	}
	return value, true, nil
}

func (c *SnapshotCache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.client.Set(ctx, key, value, 0).Err(); err != nil {
		return errors.Wrapf(err, "redis set %s", key)
	}
	return nil
}
