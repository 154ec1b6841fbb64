package rewind

import (
	"errors"
	"fmt"
)

var (
	// Validation errors.
	ErrMissingThreadID     = errors.New("rewind: thread id is required")
	ErrMissingCheckpointID = errors.New("rewind: checkpoint id is required")

	// Not found errors.
	ErrNotFound = errors.New("rewind: checkpoint not found")

	// Construction errors.
	ErrNoDurable = errors.New("rewind: durable tier client is required")
)

// PersistenceError reports an I/O failure in one of the storage tiers.
// It wraps the underlying engine error; match it with errors.As and the
// cause with errors.Is.
type PersistenceError struct {
	// Tier is "cache" or "durable".
	Tier string

	// Op is the store operation that failed, e.g. "put" or "cleanup".
	Op string

	// Err is the underlying tier client error.
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("rewind: %s %s: %v", e.Tier, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
