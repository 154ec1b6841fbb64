package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.jetify.com/typeid/v2"
	"golang.org/x/time/rate"

	"github.com/xraph/rewind"
)

// Source is the read surface the exporter pulls from. *rewind.Store
// satisfies it.
type Source interface {
	Namespaces(ctx context.Context, thread string) ([]string, error)
	List(ctx context.Context, thread, namespace string, opts ...rewind.ListOption) ([]*rewind.Checkpoint, error)
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// WithBatchSize sets how many checkpoints each listing page requests.
func WithBatchSize(n int) ExporterOption {
	return func(e *Exporter) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithRateLimit paces listing pages with a token bucket so exporting a
// live system cannot saturate the durable tier. Zero perSec disables
// pacing.
func WithRateLimit(perSec float64, burst int) ExporterOption {
	return func(e *Exporter) {
		if perSec <= 0 {
			e.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// Exporter writes one thread's checkpoints as an archive stream. It
// pages through the source with the listing before-cursor, so a thread
// larger than one batch never turns into one giant query.
type Exporter struct {
	src       Source
	batchSize int
	limiter   *rate.Limiter
}

// NewExporter creates an Exporter over the given source.
func NewExporter(src Source, opts ...ExporterOption) *Exporter {
	e := &Exporter{
		src:       src,
		batchSize: 256,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export streams every checkpoint of a thread to w and returns how many
// records it wrote. A thread with no checkpoints produces a header and
// nothing else.
func (e *Exporter) Export(ctx context.Context, w io.Writer, thread string) (int, error) {
	if thread == "" {
		return 0, rewind.ErrMissingThreadID
	}

	namespaces, err := e.src.Namespaces(ctx, thread)
	if err != nil {
		return 0, fmt.Errorf("archive: export %s: %w", thread, err)
	}

	tid, err := typeid.Generate(archiveIDPrefix)
	if err != nil {
		return 0, fmt.Errorf("archive: mint archive id: %w", err)
	}

	enc := json.NewEncoder(w)
	header := Header{
		ArchiveID:     tid.String(),
		FormatVersion: FormatVersion,
		ThreadID:      thread,
		CreatedAt:     time.Now().UTC(),
	}
	if err := enc.Encode(&header); err != nil {
		return 0, fmt.Errorf("archive: write header: %w", err)
	}

	count := 0
	for _, ns := range namespaces {
		cps, err := e.collect(ctx, thread, ns)
		if err != nil {
			return count, fmt.Errorf("archive: export %s/%s: %w", thread, ns, err)
		}
		// Listing is newest-first; the stream wants causal order.
		for i := len(cps) - 1; i >= 0; i-- {
			cp := cps[i]
			rec := Record{
				Namespace:    cp.Namespace,
				CheckpointID: cp.ID,
				ParentID:     cp.ParentID,
				Type:         cp.Type,
				Payload:      cp.Payload,
				Metadata:     cp.Metadata,
				CreatedAt:    cp.CreatedAt,
				UpdatedAt:    cp.UpdatedAt,
			}
			if err := enc.Encode(&rec); err != nil {
				return count, fmt.Errorf("archive: write record %s: %w", cp.ID, err)
			}
			count++
		}
	}
	return count, nil
}

// collect pages one namespace's checkpoints, newest-first.
func (e *Exporter) collect(ctx context.Context, thread, ns string) ([]*rewind.Checkpoint, error) {
	var all []*rewind.Checkpoint
	cursor := ""
	for {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		opts := []rewind.ListOption{rewind.WithLimit(e.batchSize)}
		if cursor != "" {
			opts = append(opts, rewind.WithBefore(cursor))
		}
		page, err := e.src.List(ctx, thread, ns, opts...)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)

		if len(page) < e.batchSize {
			return all, nil
		}
		cursor = page[len(page)-1].ID
	}
}
