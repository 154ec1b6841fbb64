package rewind

import "time"

// Checkpoint is one durable snapshot of a workflow instance's state.
//
// The payload is opaque to the store: callers serialize their state
// however they like and get the same bytes back. Metadata is a structured
// side channel used only for filtering and statistics; the store never
// interprets it beyond equality matching and the "stage" aggregation.
type Checkpoint struct {
	Entity

	// ThreadID identifies the workflow instance. Stable across all of
	// the instance's checkpoints. Required.
	ThreadID string `json:"thread_id"`

	// Namespace sub-partitions a thread into independent checkpoint
	// streams. Empty is the default stream.
	Namespace string `json:"namespace,omitempty"`

	// ID is the caller-supplied checkpoint identifier. The store never
	// generates one. Required.
	ID string `json:"checkpoint_id"`

	// ParentID optionally references the checkpoint this one resumed or
	// branched from, within the same (thread, namespace). The store does
	// not verify the reference.
	ParentID string `json:"parent_checkpoint_id,omitempty"`

	// Type is a caller-supplied opaque tag.
	Type string `json:"type,omitempty"`

	// Payload is the serialized workflow state.
	Payload []byte `json:"payload"`

	// Metadata carries owner identifiers, stage, priority, tags and the
	// like. Metadata["stage"], when it is a string, is indexed for
	// aggregation.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Stage returns Metadata["stage"] when present and a string, else "".
func (c *Checkpoint) Stage() string {
	if c.Metadata == nil {
		return ""
	}
	s, _ := c.Metadata["stage"].(string)
	return s
}

// validate checks the required key components.
func (c *Checkpoint) validate() error {
	if c.ThreadID == "" {
		return ErrMissingThreadID
	}
	if c.ID == "" {
		return ErrMissingCheckpointID
	}
	return nil
}

// Handle identifies a written checkpoint so a workflow runtime can
// resume from it later.
type Handle struct {
	ThreadID     string `json:"thread_id"`
	Namespace    string `json:"namespace,omitempty"`
	CheckpointID string `json:"checkpoint_id"`
}

// Statistics summarizes the durable tier's checkpoint population. All
// figures come from SQL aggregation; no rows are loaded to compute them.
type Statistics struct {
	TotalCheckpoints int64            `json:"total_checkpoints"`
	PerThread        map[string]int64 `json:"per_thread"`
	PerStage         map[string]int64 `json:"per_stage"`

	// OldestTimestamp and NewestTimestamp are zero when no checkpoints
	// match.
	OldestTimestamp time.Time `json:"oldest_timestamp"`
	NewestTimestamp time.Time `json:"newest_timestamp"`
}
