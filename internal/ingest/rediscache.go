package ingest

import (
	"context"
	"time"

	redisclient "github.com/Shubhojit-17/cewce/internal/infra/redis"
)

// RedisCache backs the dedup window with Redis so multiple pipeline
// instances share one first-seen view.
type RedisCache struct {
	client *redisclient.Client
	expiry time.Duration
}

// NewRedisCache wraps a Redis client as a dedup cache.
func NewRedisCache(client *redisclient.Client, expiry time.Duration) *RedisCache {
	if expiry <= 0 {
		expiry = DefaultCacheExpiry
	}
	return &RedisCache{client: client, expiry: expiry}
}

// Admit delegates to SET NX with the window as TTL.
func (c *RedisCache) Admit(ctx context.Context, key string) (bool, error) {
	return c.client.Admit(ctx, key, c.expiry)
}

// Close closes the underlying Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
