package rewind

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/rewind/cache"
	"github.com/xraph/rewind/codec"
	"github.com/xraph/rewind/ext"
)

// tracerName is the instrumentation scope name for store tracing.
const tracerName = "github.com/xraph/rewind"

// Option configures a Store.
type Option func(*Store) error

// WithConfig replaces the whole configuration. Zero-valued fields fall
// back to their defaults.
func WithConfig(cfg Config) Option {
	return func(s *Store) error {
		def := DefaultConfig()
		if cfg.CacheTTL == 0 {
			cfg.CacheTTL = def.CacheTTL
		}
		if cfg.KeyPrefix == "" {
			cfg.KeyPrefix = def.KeyPrefix
		}
		s.cfg = cfg
		return nil
	}
}

// WithCache enables the fast path through the given cache tier client.
// Without it every read goes straight to the durable tier.
func WithCache(c cache.Client) Option {
	return func(s *Store) error {
		s.cache = c
		return nil
	}
}

// WithCacheTTL bounds the lifetime of cache-tier entries.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Store) error {
		s.cfg.CacheTTL = ttl
		return nil
	}
}

// WithKeyPrefix sets the prefix for every cache-tier key.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) error {
		s.cfg.KeyPrefix = prefix
		return nil
	}
}

// WithCodec sets the serialization codec for cache records and
// metadata. Defaults to JSON; codec.Msgpack gives a denser binary
// encoding.
func WithCodec(c codec.Codec) Option {
	return func(s *Store) error {
		s.codec = c
		return nil
	}
}

// WithCompression toggles payload compression at rest. Sealed blobs are
// self-describing, so flipping this never invalidates existing rows.
func WithCompression(enabled bool) Option {
	return func(s *Store) error {
		s.cfg.Compress = enabled
		return nil
	}
}

// WithLogger sets the structured logger for the store.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) error {
		s.logger = l
		return nil
	}
}

// WithExtensions registers lifecycle extensions. They are notified
// after successful writes and deletes; hook errors are logged and
// swallowed.
func WithExtensions(exts ...ext.Extension) Option {
	return func(s *Store) error {
		s.pendingExts = append(s.pendingExts, exts...)
		return nil
	}
}

// WithTracing wraps every store operation in an OpenTelemetry span
// using the global TracerProvider. With no provider configured the
// noop tracer makes this a pass-through.
func WithTracing() Option {
	return func(s *Store) error {
		s.tracer = otel.Tracer(tracerName)
		return nil
	}
}

// WithTracer is WithTracing with an injected tracer, for tests or
// multi-provider setups.
func WithTracer(t trace.Tracer) Option {
	return func(s *Store) error {
		s.tracer = t
		return nil
	}
}
