// Package ext defines the extension system for Rewind.
// Extensions are notified of checkpoint lifecycle events (saved,
// deleted, retention completed, etc.) and can react to them — metrics,
// audit trails, webhooks, cache warmers.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"
	"time"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// SavedEvent describes a checkpoint that was written to the durable
// tier. Events carry plain identifying fields rather than the full
// record so hooks never hold references to payload buffers.
type SavedEvent struct {
	ThreadID     string
	Namespace    string
	CheckpointID string
	ParentID     string
	Type         string
	Stage        string

	// PayloadSize is the size in bytes of the sealed payload as
	// written to the durable tier.
	PayloadSize int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DeletedEvent describes a checkpoint that was removed.
type DeletedEvent struct {
	ThreadID     string
	Namespace    string
	CheckpointID string
}

// ThreadDeletedEvent describes a whole-thread removal.
type ThreadDeletedEvent struct {
	ThreadID string

	// Removed is the number of durable rows deleted across all of the
	// thread's namespaces.
	Removed int64
}

// RetentionEvent describes one completed retention cycle.
type RetentionEvent struct {
	// Horizon is the maximum age a checkpoint may reach before the
	// cycle removes it.
	Horizon time.Duration

	// Removed is the number of durable rows the cycle deleted.
	Removed int64

	// Elapsed is how long the cycle took.
	Elapsed time.Duration
}

// ──────────────────────────────────────────────────
// Checkpoint lifecycle hooks
// ──────────────────────────────────────────────────

// CheckpointSaved is called after a checkpoint is durably written.
type CheckpointSaved interface {
	OnCheckpointSaved(ctx context.Context, e SavedEvent) error
}

// CheckpointDeleted is called after a checkpoint is deleted.
type CheckpointDeleted interface {
	OnCheckpointDeleted(ctx context.Context, e DeletedEvent) error
}

// ThreadDeleted is called after all checkpoints of a thread are deleted.
type ThreadDeleted interface {
	OnThreadDeleted(ctx context.Context, e ThreadDeletedEvent) error
}

// ──────────────────────────────────────────────────
// Retention lifecycle hooks
// ──────────────────────────────────────────────────

// RetentionCompleted is called after a retention cycle finishes
// successfully. Failed cycles are logged by the retention manager and
// emit nothing.
type RetentionCompleted interface {
	OnRetentionCompleted(ctx context.Context, e RetentionEvent) error
}
