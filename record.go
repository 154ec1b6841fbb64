package rewind

import (
	"fmt"
	"time"

	"github.com/xraph/rewind/codec"
)

// record is the wire form of a checkpoint as stored in the cache tier.
// Payload holds the sealed (framed, possibly compressed) payload bytes,
// identical to the durable tier's payload column, so a cache hit and a
// durable read decode through the same path. Timestamps are unix
// microseconds UTC, matching the durable columns.
type record struct {
	ThreadID  string         `json:"thread_id" msgpack:"thread_id"`
	Namespace string         `json:"namespace" msgpack:"namespace"`
	ID        string         `json:"checkpoint_id" msgpack:"checkpoint_id"`
	ParentID  string         `json:"parent_checkpoint_id,omitempty" msgpack:"parent_checkpoint_id,omitempty"`
	Type      string         `json:"type,omitempty" msgpack:"type,omitempty"`
	Payload   []byte         `json:"payload" msgpack:"payload"`
	Metadata  map[string]any `json:"metadata,omitempty" msgpack:"metadata,omitempty"`
	CreatedAt int64          `json:"created_at" msgpack:"created_at"`
	UpdatedAt int64          `json:"updated_at" msgpack:"updated_at"`
}

// indexEntry is the small per-checkpoint value kept in the thread index
// Hash. It exists so thread-level cache invalidation can enumerate a
// stream's checkpoint ids without scanning the whole keyspace.
type indexEntry struct {
	Type      string `json:"type,omitempty" msgpack:"type,omitempty"`
	Stage     string `json:"stage,omitempty" msgpack:"stage,omitempty"`
	CreatedAt int64  `json:"created_at" msgpack:"created_at"`
}

// seal frames and optionally compresses raw bytes for storage.
func (s *Store) seal(data []byte) ([]byte, error) {
	return codec.Seal(s.comp, data)
}

// open reverses seal.
func (s *Store) open(blob []byte) ([]byte, error) {
	return codec.Open(s.comp, blob)
}

// encodeRecord converts a checkpoint into its cache-tier bytes. The
// sealed payload is passed in so Put seals exactly once for both tiers.
func (s *Store) encodeRecord(cp *Checkpoint, sealedPayload []byte) ([]byte, error) {
	rec := record{
		ThreadID:  cp.ThreadID,
		Namespace: cp.Namespace,
		ID:        cp.ID,
		ParentID:  cp.ParentID,
		Type:      cp.Type,
		Payload:   sealedPayload,
		Metadata:  cp.Metadata,
		CreatedAt: cp.CreatedAt.UnixMicro(),
		UpdatedAt: cp.UpdatedAt.UnixMicro(),
	}
	data, err := s.codec.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("rewind: encode record: %w", err)
	}
	return data, nil
}

// decodeRecord converts cache-tier bytes back into a checkpoint,
// opening the sealed payload.
func (s *Store) decodeRecord(data []byte) (*Checkpoint, error) {
	var rec record
	if err := s.codec.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("rewind: decode record: %w", err)
	}
	payload, err := s.open(rec.Payload)
	if err != nil {
		return nil, fmt.Errorf("rewind: open payload: %w", err)
	}
	return &Checkpoint{
		Entity: Entity{
			CreatedAt: time.UnixMicro(rec.CreatedAt).UTC(),
			UpdatedAt: time.UnixMicro(rec.UpdatedAt).UTC(),
		},
		ThreadID:  rec.ThreadID,
		Namespace: rec.Namespace,
		ID:        rec.ID,
		ParentID:  rec.ParentID,
		Type:      rec.Type,
		Payload:   payload,
		Metadata:  rec.Metadata,
	}, nil
}

// encodeIndexEntry converts a checkpoint into its thread index Hash
// value.
func (s *Store) encodeIndexEntry(cp *Checkpoint) ([]byte, error) {
	data, err := s.codec.Marshal(indexEntry{
		Type:      cp.Type,
		Stage:     cp.Stage(),
		CreatedAt: cp.CreatedAt.UnixMicro(),
	})
	if err != nil {
		return nil, fmt.Errorf("rewind: encode index entry: %w", err)
	}
	return data, nil
}

// sealMetadata serializes and seals a metadata map for the durable
// metadata column.
func (s *Store) sealMetadata(md map[string]any) ([]byte, error) {
	data, err := s.codec.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("rewind: encode metadata: %w", err)
	}
	return s.seal(data)
}

// openMetadata reverses sealMetadata.
func (s *Store) openMetadata(blob []byte) (map[string]any, error) {
	data, err := s.open(blob)
	if err != nil {
		return nil, fmt.Errorf("rewind: open metadata: %w", err)
	}
	var md map[string]any
	if err := s.codec.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("rewind: decode metadata: %w", err)
	}
	return md, nil
}
