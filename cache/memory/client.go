// Package memory is a fully in-memory implementation of cache.Client.
// Safe for concurrent access. Intended for unit testing and
// single-process deployments that want the write-back path without a
// Redis dependency.
package memory

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/xraph/rewind/cache"
)

// Compile-time interface check.
var _ cache.Client = (*Client)(nil)

// entry is one value with its optional expiry.
type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// Client is an in-memory cache.Client. Expiry is honored lazily on
// read; nothing reaps in the background.
type Client struct {
	mu     sync.RWMutex
	values map[string]entry
	hashes map[string]map[string][]byte

	// now is the clock; tests override it for deterministic expiry.
	now func() time.Time
}

// New returns a new empty Client.
func New() *Client {
	return &Client{
		values: make(map[string]entry),
		hashes: make(map[string]map[string][]byte),
		now:    time.Now,
	}
}

// Get returns the value at key, or cache.ErrMiss.
func (c *Client) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.values[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		delete(c.values, key)
		return nil, cache.ErrMiss
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores value at key with the given TTL.
func (c *Client) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := entry{value: make([]byte, len(value))}
	copy(e.value, value)
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.values[key] = e
	return nil
}

// Delete removes keys and any hashes stored under them.
func (c *Client) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range keys {
		delete(c.values, k)
		delete(c.hashes, k)
	}
	return nil
}

// HashGet returns the value of a hash field, or cache.ErrMiss.
func (c *Client) HashGet(_ context.Context, key, field string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.hashes[key][field]
	if !ok {
		return nil, cache.ErrMiss
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// HashSet stores a hash field.
func (c *Client) HashSet(_ context.Context, key, field string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.hashes[key]
	if !ok {
		h = make(map[string][]byte)
		c.hashes[key] = h
	}
	v := make([]byte, len(value))
	copy(v, value)
	h[field] = v
	return nil
}

// HashDelete removes hash fields; an emptied hash is dropped entirely.
func (c *Client) HashDelete(_ context.Context, key string, fields ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.hashes[key]
	if !ok {
		return nil
	}
	for _, f := range fields {
		delete(h, f)
	}
	if len(h) == 0 {
		delete(c.hashes, key)
	}
	return nil
}

// HashGetAll returns a copy of every field of a hash.
func (c *Client) HashGetAll(_ context.Context, key string) (map[string][]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	h := c.hashes[key]
	out := make(map[string][]byte, len(h))
	for f, v := range h {
		cp := make([]byte, len(v))
		copy(cp, v)
		out[f] = cp
	}
	return out, nil
}

// ListKeys returns value and hash keys matching a glob pattern. Expired
// values are skipped.
func (c *Client) ListKeys(_ context.Context, pattern string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var keys []string
	for k, e := range c.values {
		if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
			continue
		}
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	for k := range c.hashes {
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Ping always succeeds for the memory client.
func (c *Client) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory client.
func (c *Client) Close() error { return nil }
