// Package sqlite implements the durable tier on SQLite via the pure-Go
// modernc.org/sqlite driver (no cgo). Suitable for single-process
// deployments and for tests, where ":memory:" gives a throwaway
// database.
//
// Usage:
//
//	db, err := sqlite.New("checkpoints.db")
//	if err != nil { ... }
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil { ... }
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/xraph/rewind/durable"
)

// Compile-time interface check.
var _ durable.Client = (*Client)(nil)

// Option configures the Client.
type Option func(*Client)

// WithLogger sets the logger for the client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client is a SQLite implementation of durable.Client.
type Client struct {
	db     *sql.DB
	logger *slog.Logger
}

// New opens a SQLite database at path (":memory:" for an in-memory
// database). File databases get WAL journaling and a busy timeout; an
// in-memory database is pinned to a single connection because every new
// pool connection would otherwise see a fresh empty database.
func New(path string, opts ...Option) (*Client, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("rewind/sqlite: open: %w", err)
	}

	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("rewind/sqlite: enable WAL: %w", err)
		}
		if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("rewind/sqlite: set busy timeout: %w", err)
		}
	}

	c := &Client{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// DB returns the underlying *sql.DB for advanced usage.
func (c *Client) DB() *sql.DB { return c.db }

// Exec runs a statement and returns the number of rows affected.
func (c *Client) Exec(ctx context.Context, stmt string, args ...any) (int64, error) {
	res, err := c.db.ExecContext(ctx, rebind(stmt), args...)
	if err != nil {
		return 0, fmt.Errorf("rewind/sqlite: exec: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rewind/sqlite: rows affected: %w", err)
	}
	return n, nil
}

// Query runs a statement and returns its rows.
func (c *Client) Query(ctx context.Context, stmt string, args ...any) (durable.Rows, error) {
	rows, err := c.db.QueryContext(ctx, rebind(stmt), args...)
	if err != nil {
		return nil, fmt.Errorf("rewind/sqlite: query: %w", err)
	}
	return sqlRows{rows}, nil
}

// QueryRow runs a statement expected to return at most one row.
func (c *Client) QueryRow(ctx context.Context, stmt string, args ...any) durable.Row {
	return sqlRow{c.db.QueryRowContext(ctx, rebind(stmt), args...)}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the database handle this client opened.
func (c *Client) Close() error {
	return c.db.Close()
}

// sqlRows adapts *sql.Rows to durable.Rows.
type sqlRows struct {
	rows *sql.Rows
}

func (r sqlRows) Next() bool             { return r.rows.Next() }
func (r sqlRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r sqlRows) Err() error             { return r.rows.Err() }
func (r sqlRows) Close()                 { _ = r.rows.Close() }

// sqlRow maps database/sql's no-rows sentinel to the shared one.
type sqlRow struct {
	r *sql.Row
}

func (w sqlRow) Scan(dest ...any) error {
	err := w.r.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return durable.ErrNoRows
	}
	return err
}

// rebind rewrites $1..$n placeholders to SQLite's positional ?. The
// store emits placeholders strictly in order, so dropping the ordinal
// preserves argument binding.
func rebind(stmt string) string {
	var b strings.Builder
	b.Grow(len(stmt))
	for i := 0; i < len(stmt); i++ {
		if stmt[i] == '$' && i+1 < len(stmt) && stmt[i+1] >= '0' && stmt[i+1] <= '9' {
			b.WriteByte('?')
			for i+1 < len(stmt) && stmt[i+1] >= '0' && stmt[i+1] <= '9' {
				i++
			}
			continue
		}
		b.WriteByte(stmt[i])
	}
	return b.String()
}
