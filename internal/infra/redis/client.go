package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps Redis operations for the shared dedup cache. Running the
// dedup window in Redis lets multiple pipeline instances agree on which
// events are first-seen.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// NewClientFromRedis wraps an existing go-redis client (for tests).
func NewClientFromRedis(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func dedupKey(key string) string {
	return fmt.Sprintf("dedup:%s", key)
}

// Admit atomically records the key with the given TTL if absent. Returns
// true when this caller is the first to see the key within the window.
// SET NX with an expiry carries the whole dedup contract: expired keys
// vanish and the same identifier is admitted again.
func (c *Client) Admit(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, dedupKey(key), time.Now().UnixMilli(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx failed: %w", err)
	}
	return ok, nil
}

// FirstSeen returns the recorded first-seen time for a key, if still within
// the window.
func (c *Client) FirstSeen(ctx context.Context, key string) (time.Time, bool, error) {
	ms, err := c.rdb.Get(ctx, dedupKey(key)).Int64()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get failed: %w", err)
	}
	return time.UnixMilli(ms), true, nil
}
