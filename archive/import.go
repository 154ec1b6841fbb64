package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/rewind"
)

// ErrBadHeader is returned when a stream does not start with a valid
// archive header.
var ErrBadHeader = errors.New("archive: malformed or missing header")

// ErrUnsupportedVersion is returned when the stream's format version is
// not one this package reads.
var ErrUnsupportedVersion = errors.New("archive: unsupported format version")

// Sink is the write surface the importer restores into. *rewind.Store
// satisfies it.
type Sink interface {
	Put(ctx context.Context, cp *rewind.Checkpoint) (rewind.Handle, error)
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithWorkers bounds how many restores run concurrently.
func WithWorkers(n int) ImporterOption {
	return func(i *Importer) {
		if n > 0 {
			i.workers = n
		}
	}
}

// WithThreadOverride retargets every restored checkpoint to the given
// thread id instead of the archive header's.
func WithThreadOverride(thread string) ImporterOption {
	return func(i *Importer) { i.threadOverride = thread }
}

// Importer restores an archive stream through a Sink. Restores run on a
// bounded worker group; the first failure cancels the rest and is
// returned. Re-running a partially failed import is safe because the
// sink's upsert semantics make every restore idempotent.
type Importer struct {
	sink           Sink
	workers        int
	threadOverride string
}

// NewImporter creates an Importer over the given sink.
func NewImporter(sink Sink, opts ...ImporterOption) *Importer {
	i := &Importer{
		sink:    sink,
		workers: 4,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Import reads an archive stream from r and restores every record,
// returning how many checkpoints were written. Original checkpoint ids
// and timestamps are preserved; only the thread id can be retargeted.
func (i *Importer) Import(ctx context.Context, r io.Reader) (int, error) {
	dec := json.NewDecoder(r)

	var h Header
	if err := dec.Decode(&h); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, ErrBadHeader
		}
		return 0, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if h.FormatVersion != FormatVersion {
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.FormatVersion)
	}

	thread := h.ThreadID
	if i.threadOverride != "" {
		thread = i.threadOverride
	}
	if thread == "" {
		return 0, fmt.Errorf("%w: empty thread id", ErrBadHeader)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.workers)

	var restored atomic.Int64
	var decodeErr error
	for gctx.Err() == nil {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if !errors.Is(err, io.EOF) {
				decodeErr = fmt.Errorf("archive: read record: %w", err)
			}
			break
		}

		g.Go(func() error {
			cp := &rewind.Checkpoint{
				ThreadID:  thread,
				Namespace: rec.Namespace,
				ID:        rec.CheckpointID,
				ParentID:  rec.ParentID,
				Type:      rec.Type,
				Payload:   rec.Payload,
				Metadata:  rec.Metadata,
			}
			cp.CreatedAt = rec.CreatedAt
			cp.UpdatedAt = rec.UpdatedAt

			if _, err := i.sink.Put(gctx, cp); err != nil {
				return fmt.Errorf("archive: restore %s: %w", rec.CheckpointID, err)
			}
			restored.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(restored.Load()), err
	}
	return int(restored.Load()), decodeErr
}
