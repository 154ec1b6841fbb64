// Package ext defines the extension system for Rewind.
//
// Extensions are notified of lifecycle events and can react to them —
// recording metrics, writing audit trails, warming external indexes, etc.
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnCheckpointSaved(ctx context.Context, evt ext.SavedEvent) error {
//	    log.Printf("checkpoint %s saved for thread %s", evt.CheckpointID, evt.ThreadID)
//	    return nil
//	}
//
// # Checkpoint Lifecycle Hooks
//
//   - [CheckpointSaved] — a checkpoint was written to the durable tier
//   - [CheckpointDeleted] — a checkpoint was explicitly deleted
//   - [ThreadDeleted] — every checkpoint of a thread was deleted
//
// # Retention Hooks
//
//   - [RetentionCompleted] — a retention cycle finished and reports how
//     many aged checkpoints it purged
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface. Hook errors are logged
// and swallowed; they never affect the store operation that emitted the
// event.
package ext
