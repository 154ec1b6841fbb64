// Package audithook is a Rewind extension that bridges checkpoint
// lifecycle events to an immutable audit trail backend such as
// Chronicle.
//
// Every save, delete, and retention lifecycle hook emits a structured
// audit event through the [Recorder] interface. The extension assigns
// appropriate severity levels (info for normal operations, warning for
// bulk removals) and rich metadata (namespace, stage, payload size,
// rows removed).
//
// # Usage with Chronicle
//
//	audithook.New(audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
//	    return chronicle.Info(ctx, evt.Action, evt.Resource, evt.ResourceID).
//	        Category(evt.Category).
//	        Outcome(evt.Outcome).
//	        Record()
//	}))
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionThreadDeleted,
//	        audithook.ActionRetentionCompleted,
//	    ),
//	)
package audithook
