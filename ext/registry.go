package ext

import (
	"context"
	"log/slog"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type checkpointSavedEntry struct {
	name string
	hook CheckpointSaved
}

type checkpointDeletedEntry struct {
	name string
	hook CheckpointDeleted
}

type threadDeletedEntry struct {
	name string
	hook ThreadDeleted
}

type retentionCompletedEntry struct {
	name string
	hook RetentionCompleted
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	checkpointSaved    []checkpointSavedEntry
	checkpointDeleted  []checkpointDeletedEntry
	threadDeleted      []threadDeletedEntry
	retentionCompleted []retentionCompletedEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(CheckpointSaved); ok {
		r.checkpointSaved = append(r.checkpointSaved, checkpointSavedEntry{name, h})
	}
	if h, ok := e.(CheckpointDeleted); ok {
		r.checkpointDeleted = append(r.checkpointDeleted, checkpointDeletedEntry{name, h})
	}
	if h, ok := e.(ThreadDeleted); ok {
		r.threadDeleted = append(r.threadDeleted, threadDeletedEntry{name, h})
	}
	if h, ok := e.(RetentionCompleted); ok {
		r.retentionCompleted = append(r.retentionCompleted, retentionCompletedEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// EmitCheckpointSaved notifies all extensions that implement CheckpointSaved.
func (r *Registry) EmitCheckpointSaved(ctx context.Context, e SavedEvent) {
	for _, entry := range r.checkpointSaved {
		if err := entry.hook.OnCheckpointSaved(ctx, e); err != nil {
			r.logHookError("OnCheckpointSaved", entry.name, err)
		}
	}
}

// EmitCheckpointDeleted notifies all extensions that implement CheckpointDeleted.
func (r *Registry) EmitCheckpointDeleted(ctx context.Context, e DeletedEvent) {
	for _, entry := range r.checkpointDeleted {
		if err := entry.hook.OnCheckpointDeleted(ctx, e); err != nil {
			r.logHookError("OnCheckpointDeleted", entry.name, err)
		}
	}
}

// EmitThreadDeleted notifies all extensions that implement ThreadDeleted.
func (r *Registry) EmitThreadDeleted(ctx context.Context, e ThreadDeletedEvent) {
	for _, entry := range r.threadDeleted {
		if err := entry.hook.OnThreadDeleted(ctx, e); err != nil {
			r.logHookError("OnThreadDeleted", entry.name, err)
		}
	}
}

// EmitRetentionCompleted notifies all extensions that implement RetentionCompleted.
func (r *Registry) EmitRetentionCompleted(ctx context.Context, e RetentionEvent) {
	for _, entry := range r.retentionCompleted {
		if err := entry.hook.OnRetentionCompleted(ctx, e); err != nil {
			r.logHookError("OnRetentionCompleted", entry.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated — they must not affect the
// store operation that triggered them.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
