package rewind

import "time"

// Config holds configuration for the Store.
type Config struct {
	// CacheTTL bounds the lifetime of cache-tier entries. Stale cache
	// entries left behind by failed deletions or retention cleanup
	// disappear on their own once the TTL elapses.
	CacheTTL time.Duration

	// KeyPrefix namespaces every cache-tier key so one cache instance
	// can serve several applications.
	KeyPrefix string

	// Compress enables payload compression at rest. Sealed blobs carry
	// a per-blob marker, so flipping this setting never invalidates
	// previously written checkpoints.
	Compress bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CacheTTL:  24 * time.Hour,
		KeyPrefix: "rewind:",
		Compress:  true,
	}
}
