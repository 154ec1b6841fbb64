// Package durable defines the durable tier client contract. The durable
// tier is the authoritative store of record for checkpoints.
//
// Clients are pure statement transport: the checkpoint store builds
// every SQL statement and the client only executes it and returns rows
// or an affected-row count. That keeps all schema and query logic in one
// place, makes the engines interchangeable, and gives tests a narrow
// seam to inject failures through.
//
// Statements use $1..$n placeholders, strictly sequential and each used
// exactly once in order. Engines whose native placeholder is positional
// (SQLite) rewrite them mechanically.
package durable

import (
	"context"
	"errors"
)

// ErrNoRows is returned by Row.Scan when the query matched nothing.
// Each client maps its engine's native sentinel to this one so callers
// never import an engine package to test for it.
var ErrNoRows = errors.New("durable: no rows in result set")

// Client is the durable tier transport contract.
type Client interface {
	// Exec runs a statement and returns the number of rows affected.
	Exec(ctx context.Context, stmt string, args ...any) (int64, error)

	// Query runs a statement and returns its rows. The caller must
	// close them.
	Query(ctx context.Context, stmt string, args ...any) (Rows, error)

	// QueryRow runs a statement expected to return at most one row.
	// The error, including ErrNoRows, is deferred to Scan.
	QueryRow(ctx context.Context, stmt string, args ...any) Row

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close releases resources the client owns.
	Close() error
}

// Rows is a forward-only result cursor.
type Rows interface {
	// Next advances to the next row, reporting whether one exists.
	Next() bool

	// Scan copies the current row's columns into dest.
	Scan(dest ...any) error

	// Err returns the error, if any, that ended iteration.
	Err() error

	// Close releases the cursor. Safe to call more than once.
	Close()
}

// Row is a single-row result.
type Row interface {
	// Scan copies the row's columns into dest, or returns ErrNoRows.
	Scan(dest ...any) error
}
