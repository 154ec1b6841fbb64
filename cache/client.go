// Package cache defines the cache tier client contract. The cache tier
// is a fast, ephemeral, TTL-bounded accelerator in front of the durable
// tier; it is never the system of record. Implementations are pure
// transport and carry no checkpoint semantics, which keeps them
// substitutable with the in-memory client in tests.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get and HashGet when the key or field is
// absent or expired. Engine I/O failures are returned as their own
// errors, never as ErrMiss.
var ErrMiss = errors.New("cache: miss")

// Client is the cache tier transport contract.
type Client interface {
	// Get returns the value at key, or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value at key. A positive ttl bounds its lifetime;
	// zero means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// HashGet returns the value of a hash field, or ErrMiss.
	HashGet(ctx context.Context, key, field string) ([]byte, error)

	// HashSet stores a hash field.
	HashSet(ctx context.Context, key, field string, value []byte) error

	// HashDelete removes hash fields. Missing fields are not an error.
	HashDelete(ctx context.Context, key string, fields ...string) error

	// HashGetAll returns every field of a hash. An absent hash yields
	// an empty map, not an error.
	HashGetAll(ctx context.Context, key string) (map[string][]byte, error)

	// ListKeys returns the keys matching a glob-style pattern
	// (*, ?, [...]).
	ListKeys(ctx context.Context, pattern string) ([]string, error)

	// Ping verifies the cache connection is alive.
	Ping(ctx context.Context) error

	// Close releases resources the client owns. Clients wrapping a
	// caller-owned connection treat this as a no-op.
	Close() error
}
