package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle
// hook and becomes the Action field of the audit event.
const (
	ActionCheckpointSaved    = "checkpoint.saved"
	ActionCheckpointDeleted  = "checkpoint.deleted"
	ActionThreadDeleted      = "thread.deleted"
	ActionRetentionCompleted = "retention.completed"
)

// Audit event categories group related actions.
const (
	CategoryCheckpoint = "rewind.checkpoint"
	CategoryThread     = "rewind.thread"
	CategoryRetention  = "rewind.retention"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceCheckpoint = "checkpoint"
	ResourceThread     = "thread"
	ResourceRetention  = "retention_cycle"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionCheckpointSaved,
		ActionCheckpointDeleted,
		ActionThreadDeleted,
		ActionRetentionCompleted,
	}
}
