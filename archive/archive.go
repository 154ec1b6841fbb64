// Package archive implements thread-scoped checkpoint backup and
// restore over line-oriented JSON streams.
//
// An archive is a header line followed by one line per checkpoint,
// namespace by namespace, oldest first within each namespace, so a
// restore replays writes in causal order. Payloads travel base64-coded
// inside the JSON lines; a restore re-seals them through the target
// store's own codec, so archives move cleanly between stores with
// different compression settings.
package archive

import (
	"time"
)

// FormatVersion is the stream format this package reads and writes.
const FormatVersion = 1

// archiveIDPrefix is the TypeID prefix for minted archive ids.
const archiveIDPrefix = "exp"

// Header is the first line of an archive stream.
type Header struct {
	ArchiveID     string    `json:"archive_id"`
	FormatVersion int       `json:"format_version"`
	ThreadID      string    `json:"thread_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// Record is one checkpoint line. Payload is raw checkpoint bytes;
// encoding/json base64-codes it on the wire.
type Record struct {
	Namespace    string         `json:"namespace,omitempty"`
	CheckpointID string         `json:"checkpoint_id"`
	ParentID     string         `json:"parent_checkpoint_id,omitempty"`
	Type         string         `json:"type,omitempty"`
	Payload      []byte         `json:"payload"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
