package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/rewind/ext"
)

// Compile-time interface checks.
var (
	_ ext.Extension          = (*Extension)(nil)
	_ ext.CheckpointSaved    = (*Extension)(nil)
	_ ext.CheckpointDeleted  = (*Extension)(nil)
	_ ext.ThreadDeleted      = (*Extension)(nil)
	_ ext.RetentionCompleted = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audit_hook package does not import Chronicle directly — callers inject
// the concrete *chronicle.Chronicle at wiring time.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
// Callers provide a RecorderFunc adapter that bridges to their audit backend.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
//
// Example bridging to Chronicle:
//
//	audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
//	    b := chronicle.Info(ctx, evt.Action, evt.Resource, evt.ResourceID).
//	        Category(evt.Category).
//	        Outcome(evt.Outcome)
//	    for k, v := range evt.Metadata {
//	        b = b.Meta(k, v)
//	    }
//	    return b.Record()
//	})
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Severity constants (mirror chronicle/audit).
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants (mirror chronicle/audit).
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges Rewind lifecycle events to an audit trail backend.
// Each lifecycle hook emits a structured audit event through the [Recorder].
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Checkpoint lifecycle hooks ──────────────────────

// OnCheckpointSaved implements ext.CheckpointSaved.
func (e *Extension) OnCheckpointSaved(ctx context.Context, evt ext.SavedEvent) error {
	return e.record(ctx, ActionCheckpointSaved, SeverityInfo, OutcomeSuccess,
		ResourceCheckpoint, evt.CheckpointID, CategoryCheckpoint, nil,
		"thread_id", evt.ThreadID,
		"namespace", evt.Namespace,
		"parent_id", evt.ParentID,
		"type", evt.Type,
		"stage", evt.Stage,
		"payload_bytes", evt.PayloadSize,
	)
}

// OnCheckpointDeleted implements ext.CheckpointDeleted.
func (e *Extension) OnCheckpointDeleted(ctx context.Context, evt ext.DeletedEvent) error {
	return e.record(ctx, ActionCheckpointDeleted, SeverityInfo, OutcomeSuccess,
		ResourceCheckpoint, evt.CheckpointID, CategoryCheckpoint, nil,
		"thread_id", evt.ThreadID,
		"namespace", evt.Namespace,
	)
}

// ── Thread lifecycle hooks ──────────────────────────

// OnThreadDeleted implements ext.ThreadDeleted. Whole-thread removal is
// a bulk destructive operation, so it audits at warning severity.
func (e *Extension) OnThreadDeleted(ctx context.Context, evt ext.ThreadDeletedEvent) error {
	return e.record(ctx, ActionThreadDeleted, SeverityWarning, OutcomeSuccess,
		ResourceThread, evt.ThreadID, CategoryThread, nil,
		"removed", evt.Removed,
	)
}

// ── Retention lifecycle hooks ───────────────────────

// OnRetentionCompleted implements ext.RetentionCompleted.
func (e *Extension) OnRetentionCompleted(ctx context.Context, evt ext.RetentionEvent) error {
	return e.record(ctx, ActionRetentionCompleted, SeverityInfo, OutcomeSuccess,
		ResourceRetention, "", CategoryRetention, nil,
		"horizon", evt.Horizon.String(),
		"removed", evt.Removed,
		"elapsed_ms", evt.Elapsed.Milliseconds(),
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
