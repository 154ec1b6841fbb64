package rewind

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/xraph/rewind/durable"
)

// ListOption configures a List call.
type ListOption func(*listQuery)

type listQuery struct {
	filter map[string]any
	before string
	limit  int
}

// WithFilter restricts results to checkpoints whose metadata matches
// every given field by equality. The stage field is pushed down to the
// durable query; remaining fields are compared after decoding, with
// both sides normalized through JSON so numeric types supplied at put
// time match their decoded forms.
func WithFilter(filter map[string]any) ListOption {
	return func(q *listQuery) { q.filter = filter }
}

// WithBefore restricts results to checkpoints strictly older than the
// referenced checkpoint in listing order, for cursor pagination. An
// unknown reference id fails the List with ErrNotFound.
func WithBefore(checkpointID string) ListOption {
	return func(q *listQuery) { q.before = checkpointID }
}

// WithLimit caps the number of results. Zero or negative means no cap.
func WithLimit(n int) ListOption {
	return func(q *listQuery) { q.limit = n }
}

// List returns a (thread, namespace) stream's checkpoints newest-first,
// ordered by CreatedAt with ids breaking ties. It always queries the
// durable tier; the cache has no ordering to offer. Repeating the same
// call without intervening writes yields identical results.
func (s *Store) List(ctx context.Context, thread, namespace string, opts ...ListOption) ([]*Checkpoint, error) {
	ctx, end := s.span(ctx, "list",
		attribute.String("rewind.thread_id", thread),
		attribute.String("rewind.namespace", namespace),
	)
	var err error
	defer func() { end(err) }()

	if thread == "" {
		err = ErrMissingThreadID
		return nil, err
	}

	var q listQuery
	for _, opt := range opts {
		opt(&q)
	}

	stmt, args, residual, buildErr := s.buildListQuery(ctx, thread, namespace, &q)
	if buildErr != nil {
		err = buildErr
		return nil, err
	}

	rows, err := s.db.Query(ctx, stmt, args...)
	if err != nil {
		err = &PersistenceError{Tier: "durable", Op: "list", Err: err}
		return nil, err
	}
	defer rows.Close()

	var out []*Checkpoint
	for rows.Next() {
		cp, scanErr := s.scanCheckpoint(rows)
		if scanErr != nil {
			err = &PersistenceError{Tier: "durable", Op: "list", Err: scanErr}
			return nil, err
		}
		if !matchMetadata(cp.Metadata, residual) {
			continue
		}
		out = append(out, cp)
		if q.limit > 0 && len(out) == q.limit {
			break
		}
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		err = &PersistenceError{Tier: "durable", Op: "list", Err: rowsErr}
		return nil, err
	}
	return out, nil
}

// buildListQuery assembles the listing statement. It returns the
// residual metadata filter — everything that could not be pushed down
// to SQL and must be checked per row after decoding.
func (s *Store) buildListQuery(ctx context.Context, thread, namespace string, q *listQuery) (string, []any, map[string]any, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + checkpointColumns + `
		FROM rewind_checkpoints
		WHERE thread_id = $1 AND namespace = $2`)
	args := []any{thread, namespace}

	residual := make(map[string]any, len(q.filter))
	for k, v := range q.filter {
		residual[k] = v
	}
	if stage, ok := residual["stage"].(string); ok {
		delete(residual, "stage")
		args = append(args, stage)
		b.WriteString(` AND stage = $` + strconv.Itoa(len(args)))
	}

	if q.before != "" {
		cutoff, id, err := s.resolveCursor(ctx, thread, namespace, q.before)
		if err != nil {
			return "", nil, nil, err
		}
		// Strictly older in listing order: the (created_at, id) tuple
		// below the reference row's.
		args = append(args, cutoff)
		b.WriteString(` AND (created_at < $` + strconv.Itoa(len(args)))
		args = append(args, cutoff)
		b.WriteString(` OR (created_at = $` + strconv.Itoa(len(args)))
		args = append(args, id)
		b.WriteString(` AND checkpoint_id < $` + strconv.Itoa(len(args)) + `))`)
	}

	b.WriteString(` ORDER BY created_at DESC, checkpoint_id DESC`)

	// The SQL limit only applies when every filter was pushed down;
	// residual filtering caps results in the scan loop instead.
	if q.limit > 0 && len(residual) == 0 {
		args = append(args, q.limit)
		b.WriteString(` LIMIT $` + strconv.Itoa(len(args)))
	}

	return b.String(), args, residual, nil
}

// resolveCursor looks up the before-reference row's sort key.
func (s *Store) resolveCursor(ctx context.Context, thread, namespace, id string) (int64, string, error) {
	var createdAt int64
	err := s.db.QueryRow(ctx, `
		SELECT created_at FROM rewind_checkpoints
		WHERE thread_id = $1 AND namespace = $2 AND checkpoint_id = $3`,
		thread, namespace, id,
	).Scan(&createdAt)
	if errors.Is(err, durable.ErrNoRows) {
		return 0, "", fmt.Errorf("rewind: before cursor %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return 0, "", &PersistenceError{Tier: "durable", Op: "list", Err: err}
	}
	return createdAt, id, nil
}

// matchMetadata reports whether metadata satisfies every filter field
// by equality. Values are normalized through JSON before comparing so
// that, for example, an int supplied at put time matches the float64 a
// JSON codec decodes.
func matchMetadata(md map[string]any, filter map[string]any) bool {
	if len(filter) == 0 {
		return true
	}
	for k, want := range filter {
		got, ok := md[k]
		if !ok {
			return false
		}
		if !jsonEqual(got, want) {
			return false
		}
	}
	return true
}

// jsonEqual compares two values by their canonical JSON encoding.
// encoding/json sorts map keys, making the comparison order-stable.
func jsonEqual(a, b any) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}
