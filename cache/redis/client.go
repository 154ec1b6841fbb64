// Package redis implements the cache tier on Redis. Checkpoint values
// are plain keys with TTLs; per-thread indexes are Hashes. Accepts any
// go-redis Cmdable, so single-node, cluster, and sentinel deployments
// all work.
//
// Usage:
//
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	c := rediscache.New(rdb)
//	if err := c.Ping(ctx); err != nil { ... }
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/rewind/cache"
)

// Compile-time interface check.
var _ cache.Client = (*Client)(nil)

// scanCount is the batch hint passed to SCAN.
const scanCount = 256

// Option configures the Client.
type Option func(*Client)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithHashTTL bounds the lifetime of index hashes. Hash fields cannot
// carry per-field TTLs, so the whole hash key's expiry is refreshed on
// every write instead. Zero disables the refresh.
func WithHashTTL(ttl time.Duration) Option {
	return func(c *Client) { c.hashTTL = ttl }
}

// Client implements cache.Client backed by Redis.
type Client struct {
	client  redis.Cmdable
	logger  *slog.Logger
	hashTTL time.Duration
}

// New creates a Redis-backed cache client. The caller owns the Redis
// client lifecycle.
func New(client redis.Cmdable, opts ...Option) *Client {
	c := &Client{
		client:  client,
		logger:  slog.Default(),
		hashTTL: 7 * 24 * time.Hour,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Redis returns the underlying Redis client.
func (c *Client) Redis() redis.Cmdable { return c.client }

// Get returns the value at key, or cache.ErrMiss.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cache.ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("rewind/redis: get: %w", err)
	}
	return val, nil
}

// Set stores value at key with the given TTL.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("rewind/redis: set: %w", err)
	}
	return nil
}

// Delete removes keys.
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("rewind/redis: del: %w", err)
	}
	return nil
}

// HashGet returns the value of a hash field, or cache.ErrMiss.
func (c *Client) HashGet(ctx context.Context, key, field string) ([]byte, error) {
	val, err := c.client.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return nil, cache.ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("rewind/redis: hget: %w", err)
	}
	return []byte(val), nil
}

// HashSet stores a hash field and refreshes the hash key's expiry.
func (c *Client) HashSet(ctx context.Context, key, field string, value []byte) error {
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, field, value)
	if c.hashTTL > 0 {
		pipe.Expire(ctx, key, c.hashTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rewind/redis: hset: %w", err)
	}
	return nil
}

// HashDelete removes hash fields.
func (c *Client) HashDelete(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	if err := c.client.HDel(ctx, key, fields...).Err(); err != nil {
		return fmt.Errorf("rewind/redis: hdel: %w", err)
	}
	return nil
}

// HashGetAll returns every field of a hash.
func (c *Client) HashGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	vals, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("rewind/redis: hgetall: %w", err)
	}
	out := make(map[string][]byte, len(vals))
	for f, v := range vals {
		out[f] = []byte(v)
	}
	return out, nil
}

// ListKeys returns the keys matching pattern, iterating SCAN so large
// keyspaces never block the server the way KEYS would.
func (c *Client) ListKeys(ctx context.Context, pattern string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := c.client.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("rewind/redis: scan: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

// Ping verifies the Redis connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close is a no-op; the caller owns the Redis client lifecycle.
func (c *Client) Close() error { return nil }
