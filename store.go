package rewind

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/rewind/cache"
	"github.com/xraph/rewind/codec"
	"github.com/xraph/rewind/durable"
	"github.com/xraph/rewind/ext"
)

// checkpointColumns is the column list shared by every checkpoint
// SELECT. The stage column is write-only: it exists for SQL aggregation
// and filter pushdown, and is reconstructed from metadata on read.
const checkpointColumns = `thread_id, namespace, checkpoint_id, parent_checkpoint_id,
		checkpoint_type, payload, metadata, created_at, updated_at`

// Store is the checkpoint store. It composes a codec, an optional cache
// tier, and a durable tier behind the five core operations (Put, Get,
// List, Delete, Stats) plus thread-level maintenance.
//
// The durable tier is the system of record. The cache tier only
// accelerates point reads: every cache failure degrades to a durable
// read and every "latest"/listing query bypasses the cache entirely, so
// ordering never depends on what happens to be cached.
//
// A Store is safe for concurrent use. Concurrent puts to the same
// (thread, namespace, id) race at last-writer-wins; serializing writers
// within a thread is the caller's responsibility.
type Store struct {
	db     durable.Client
	cache  cache.Client
	codec  codec.Codec
	comp   codec.Compressor
	cfg    Config
	logger *slog.Logger
	ext    *ext.Registry
	tracer trace.Tracer

	// pendingExts buffers WithExtensions registrations until the final
	// logger is known.
	pendingExts []ext.Extension

	// now is the clock; tests override it for deterministic timestamps.
	now func() time.Time
}

// New creates a Store over the given durable tier client. The caller
// owns the tier clients' lifecycles; Close never closes them.
func New(db durable.Client, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, ErrNoDurable
	}
	s := &Store{
		db:     db,
		codec:  &codec.JSON{},
		cfg:    DefaultConfig(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.cfg.Compress {
		s.comp = &codec.LZ4{}
	}
	s.ext = ext.NewRegistry(s.logger)
	for _, e := range s.pendingExts {
		s.ext.Register(e)
	}
	s.pendingExts = nil
	return s, nil
}

// Put writes a checkpoint to both tiers and returns a resumption
// handle. The write is an upsert: re-putting the same
// (thread, namespace, id) overwrites in place and never errors on the
// duplicate key. A zero CreatedAt is stamped to now; a non-zero one is
// kept, which lets restores carry their original timestamps. UpdatedAt
// is always refreshed.
//
// The cache is written first, then the durable tier. A cache failure is
// logged and swallowed — the durable tier is the system of record. A
// durable failure returns a *PersistenceError and the checkpoint must
// be treated as not persisted until a retry succeeds, even though the
// cache may already hold it.
func (s *Store) Put(ctx context.Context, cp *Checkpoint) (Handle, error) {
	ctx, end := s.span(ctx, "put",
		attribute.String("rewind.thread_id", cp.ThreadID),
		attribute.String("rewind.namespace", cp.Namespace),
		attribute.String("rewind.checkpoint_id", cp.ID),
	)
	var err error
	defer func() { end(err) }()

	if err = cp.validate(); err != nil {
		return Handle{}, err
	}

	now := s.now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now

	sealedPayload, err := s.seal(cp.Payload)
	if err != nil {
		return Handle{}, err
	}
	sealedMeta, err := s.sealMetadata(cp.Metadata)
	if err != nil {
		return Handle{}, err
	}

	if cacheErr := s.cacheWrite(ctx, cp, sealedPayload); cacheErr != nil {
		s.logger.Warn("cache write failed, durable write proceeding",
			"thread", cp.ThreadID, "checkpoint", cp.ID, "error", cacheErr)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO rewind_checkpoints (
			thread_id, namespace, checkpoint_id, parent_checkpoint_id,
			checkpoint_type, stage, payload, metadata, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (thread_id, namespace, checkpoint_id) DO UPDATE SET
			parent_checkpoint_id = excluded.parent_checkpoint_id,
			checkpoint_type      = excluded.checkpoint_type,
			stage                = excluded.stage,
			payload              = excluded.payload,
			metadata             = excluded.metadata,
			updated_at           = excluded.updated_at`,
		cp.ThreadID, cp.Namespace, cp.ID, cp.ParentID,
		cp.Type, cp.Stage(), sealedPayload, sealedMeta,
		cp.CreatedAt.UnixMicro(), cp.UpdatedAt.UnixMicro(),
	)
	if err != nil {
		err = &PersistenceError{Tier: "durable", Op: "put", Err: err}
		return Handle{}, err
	}

	s.ext.EmitCheckpointSaved(ctx, ext.SavedEvent{
		ThreadID:     cp.ThreadID,
		Namespace:    cp.Namespace,
		CheckpointID: cp.ID,
		ParentID:     cp.ParentID,
		Type:         cp.Type,
		Stage:        cp.Stage(),
		PayloadSize:  len(sealedPayload),
		CreatedAt:    cp.CreatedAt,
		UpdatedAt:    cp.UpdatedAt,
	})

	return Handle{ThreadID: cp.ThreadID, Namespace: cp.Namespace, CheckpointID: cp.ID}, nil
}

// Get returns the checkpoint with the given id, or ErrNotFound. The
// cache is consulted first; any cache failure is treated as a miss and
// the durable tier answers. Durable hits are written back to the cache
// on the way out.
func (s *Store) Get(ctx context.Context, thread, namespace, id string) (*Checkpoint, error) {
	ctx, end := s.span(ctx, "get",
		attribute.String("rewind.thread_id", thread),
		attribute.String("rewind.namespace", namespace),
		attribute.String("rewind.checkpoint_id", id),
	)
	var err error
	defer func() { end(err) }()

	if thread == "" {
		err = ErrMissingThreadID
		return nil, err
	}
	if id == "" {
		err = ErrMissingCheckpointID
		return nil, err
	}

	if cp := s.cacheRead(ctx, thread, namespace, id); cp != nil {
		return cp, nil
	}

	row := s.db.QueryRow(ctx, `
		SELECT `+checkpointColumns+`
		FROM rewind_checkpoints
		WHERE thread_id = $1 AND namespace = $2 AND checkpoint_id = $3`,
		thread, namespace, id,
	)
	cp, err := s.scanCheckpoint(row)
	if errors.Is(err, durable.ErrNoRows) {
		err = ErrNotFound
		return nil, err
	}
	if err != nil {
		err = &PersistenceError{Tier: "durable", Op: "get", Err: err}
		return nil, err
	}

	s.writeBack(ctx, cp)
	return cp, nil
}

// Latest returns the most recent checkpoint of a (thread, namespace)
// stream by CreatedAt, ids breaking ties, or ErrNotFound when the
// stream is empty. It always queries the durable tier — never the
// cache, whose contents say nothing about recency — and writes the
// winner back to the cache under its fully-qualified key.
func (s *Store) Latest(ctx context.Context, thread, namespace string) (*Checkpoint, error) {
	ctx, end := s.span(ctx, "latest",
		attribute.String("rewind.thread_id", thread),
		attribute.String("rewind.namespace", namespace),
	)
	var err error
	defer func() { end(err) }()

	if thread == "" {
		err = ErrMissingThreadID
		return nil, err
	}

	row := s.db.QueryRow(ctx, `
		SELECT `+checkpointColumns+`
		FROM rewind_checkpoints
		WHERE thread_id = $1 AND namespace = $2
		ORDER BY created_at DESC, checkpoint_id DESC
		LIMIT 1`,
		thread, namespace,
	)
	cp, err := s.scanCheckpoint(row)
	if errors.Is(err, durable.ErrNoRows) {
		err = ErrNotFound
		return nil, err
	}
	if err != nil {
		err = &PersistenceError{Tier: "durable", Op: "latest", Err: err}
		return nil, err
	}

	s.writeBack(ctx, cp)
	return cp, nil
}

// Delete removes a checkpoint from both tiers, or returns ErrNotFound
// when the durable tier has no such row. An explicit checkpoint id is
// required; there is no "delete latest". Cache deletion is best-effort:
// when the cache tier is unreachable the durable delete stands and the
// stale entry expires via TTL.
func (s *Store) Delete(ctx context.Context, thread, namespace, id string) error {
	ctx, end := s.span(ctx, "delete",
		attribute.String("rewind.thread_id", thread),
		attribute.String("rewind.namespace", namespace),
		attribute.String("rewind.checkpoint_id", id),
	)
	var err error
	defer func() { end(err) }()

	if thread == "" {
		err = ErrMissingThreadID
		return err
	}
	if id == "" {
		err = ErrMissingCheckpointID
		return err
	}

	n, err := s.db.Exec(ctx, `
		DELETE FROM rewind_checkpoints
		WHERE thread_id = $1 AND namespace = $2 AND checkpoint_id = $3`,
		thread, namespace, id,
	)
	if err != nil {
		err = &PersistenceError{Tier: "durable", Op: "delete", Err: err}
		return err
	}
	if n == 0 {
		err = ErrNotFound
		return err
	}

	if s.cache != nil {
		if cacheErr := s.cache.Delete(ctx, s.checkpointKey(thread, namespace, id)); cacheErr != nil {
			s.logger.Warn("cache delete failed, entry will expire via TTL",
				"thread", thread, "checkpoint", id, "error", cacheErr)
		}
		if cacheErr := s.cache.HashDelete(ctx, s.threadKey(thread, namespace), id); cacheErr != nil {
			s.logger.Warn("cache index delete failed",
				"thread", thread, "checkpoint", id, "error", cacheErr)
		}
	}

	s.ext.EmitCheckpointDeleted(ctx, ext.DeletedEvent{
		ThreadID:     thread,
		Namespace:    namespace,
		CheckpointID: id,
	})
	return nil
}

// DeleteThread removes every checkpoint of a thread across all of its
// namespaces and returns the number of durable rows deleted. Deleting
// an unknown thread removes nothing and is not an error. Cache
// invalidation enumerates the thread's keys best-effort.
func (s *Store) DeleteThread(ctx context.Context, thread string) (int64, error) {
	ctx, end := s.span(ctx, "delete_thread",
		attribute.String("rewind.thread_id", thread),
	)
	var err error
	defer func() { end(err) }()

	if thread == "" {
		err = ErrMissingThreadID
		return 0, err
	}

	n, err := s.db.Exec(ctx, `DELETE FROM rewind_checkpoints WHERE thread_id = $1`, thread)
	if err != nil {
		err = &PersistenceError{Tier: "durable", Op: "delete_thread", Err: err}
		return 0, err
	}

	s.invalidateThread(ctx, thread)

	s.ext.EmitThreadDeleted(ctx, ext.ThreadDeletedEvent{ThreadID: thread, Removed: n})
	return n, nil
}

// Ping verifies connectivity to both tiers.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("rewind: durable ping: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Ping(ctx); err != nil {
			return fmt.Errorf("rewind: cache ping: %w", err)
		}
	}
	return nil
}

// Close releases nothing: the caller owns both tier clients and closes
// them itself. It exists so the Store satisfies io.Closer in wiring
// code.
func (s *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Cache plumbing
// ──────────────────────────────────────────────────

// cacheRead attempts a cache hit. Every failure — miss, transport
// error, undecodable entry — returns nil so the caller falls through to
// the durable tier.
func (s *Store) cacheRead(ctx context.Context, thread, namespace, id string) *Checkpoint {
	if s.cache == nil {
		return nil
	}
	data, err := s.cache.Get(ctx, s.checkpointKey(thread, namespace, id))
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Debug("cache read failed, falling back to durable tier",
				"thread", thread, "checkpoint", id, "error", err)
		}
		return nil
	}
	cp, err := s.decodeRecord(data)
	if err != nil {
		s.logger.Debug("cache entry undecodable, falling back to durable tier",
			"thread", thread, "checkpoint", id, "error", err)
		return nil
	}
	return cp
}

// cacheWrite stores the sealed record and its thread index entry.
func (s *Store) cacheWrite(ctx context.Context, cp *Checkpoint, sealedPayload []byte) error {
	if s.cache == nil {
		return nil
	}
	data, err := s.encodeRecord(cp, sealedPayload)
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, s.checkpointKey(cp.ThreadID, cp.Namespace, cp.ID), data, s.cfg.CacheTTL); err != nil {
		return err
	}
	entry, err := s.encodeIndexEntry(cp)
	if err != nil {
		return err
	}
	return s.cache.HashSet(ctx, s.threadKey(cp.ThreadID, cp.Namespace), cp.ID, entry)
}

// writeBack populates the cache after a durable read. Failures are
// logged and swallowed; the read already succeeded.
func (s *Store) writeBack(ctx context.Context, cp *Checkpoint) {
	if s.cache == nil {
		return
	}
	sealedPayload, err := s.seal(cp.Payload)
	if err == nil {
		err = s.cacheWrite(ctx, cp, sealedPayload)
	}
	if err != nil {
		s.logger.Debug("cache write-back failed",
			"thread", cp.ThreadID, "checkpoint", cp.ID, "error", err)
	}
}

// invalidateThread sweeps a thread's checkpoint and index keys from the
// cache, best-effort.
func (s *Store) invalidateThread(ctx context.Context, thread string) {
	if s.cache == nil {
		return
	}
	var keys []string
	for _, pattern := range []string{s.checkpointKeyPattern(thread), s.threadKeyPattern(thread)} {
		matched, err := s.cache.ListKeys(ctx, pattern)
		if err != nil {
			s.logger.Warn("cache key enumeration failed, entries will expire via TTL",
				"thread", thread, "pattern", pattern, "error", err)
			continue
		}
		keys = append(keys, matched...)
	}
	if len(keys) == 0 {
		return
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("cache sweep failed, entries will expire via TTL",
			"thread", thread, "keys", len(keys), "error", err)
	}
}

// ──────────────────────────────────────────────────
// Row scanning
// ──────────────────────────────────────────────────

// scanner is the shared Scan surface of durable.Row and durable.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanCheckpoint reads one checkpointColumns row into a Checkpoint,
// opening the sealed payload and metadata blobs.
func (s *Store) scanCheckpoint(sc scanner) (*Checkpoint, error) {
	var (
		cp                   Checkpoint
		payload, meta        []byte
		createdAt, updatedAt int64
	)
	if err := sc.Scan(
		&cp.ThreadID, &cp.Namespace, &cp.ID, &cp.ParentID,
		&cp.Type, &payload, &meta, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	opened, err := s.open(payload)
	if err != nil {
		return nil, err
	}
	md, err := s.openMetadata(meta)
	if err != nil {
		return nil, err
	}

	cp.Payload = opened
	cp.Metadata = md
	cp.CreatedAt = time.UnixMicro(createdAt).UTC()
	cp.UpdatedAt = time.UnixMicro(updatedAt).UTC()
	return &cp, nil
}
