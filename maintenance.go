package rewind

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Cleanup deletes every durable checkpoint created before now minus
// horizon and returns the number of rows deleted. It is the retention
// manager's workhorse but callable directly.
//
// Cache entries are not swept here: value keys carry a TTL and expire
// on their own, and sweeping them would race concurrent write-backs of
// rows the horizon did not reach. The cache population is only counted
// for the debug log.
func (s *Store) Cleanup(ctx context.Context, horizon time.Duration) (int64, error) {
	ctx, end := s.span(ctx, "cleanup",
		attribute.String("rewind.horizon", horizon.String()),
	)
	var err error
	defer func() { end(err) }()

	cutoff := s.now().UTC().Add(-horizon)

	n, err := s.db.Exec(ctx,
		`DELETE FROM rewind_checkpoints WHERE created_at < $1`,
		cutoff.UnixMicro(),
	)
	if err != nil {
		err = &PersistenceError{Tier: "durable", Op: "cleanup", Err: err}
		return 0, err
	}

	if s.cache != nil && n > 0 {
		keys, listErr := s.cache.ListKeys(ctx, s.cfg.KeyPrefix+"ckpt:*")
		if listErr == nil {
			s.logger.Debug("cleanup leaving cache entries to expire via TTL",
				"deleted", n, "cutoff", cutoff, "cached", len(keys))
		}
	}
	return n, nil
}

// Stats aggregates the durable checkpoint population entirely in SQL;
// no rows are loaded. An empty thread means all threads. Stage counts
// come from the indexed stage column and omit checkpoints without one.
func (s *Store) Stats(ctx context.Context, thread string) (*Statistics, error) {
	ctx, end := s.span(ctx, "stats",
		attribute.String("rewind.thread_id", thread),
	)
	var err error
	defer func() { end(err) }()

	where := ""
	var args []any
	if thread != "" {
		where = ` WHERE thread_id = $1`
		args = append(args, thread)
	}

	stats := &Statistics{
		PerThread: make(map[string]int64),
		PerStage:  make(map[string]int64),
	}

	var oldest, newest int64
	err = s.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(MIN(created_at), 0), COALESCE(MAX(created_at), 0)
		FROM rewind_checkpoints`+where, args...,
	).Scan(&stats.TotalCheckpoints, &oldest, &newest)
	if err != nil {
		err = &PersistenceError{Tier: "durable", Op: "stats", Err: err}
		return nil, err
	}
	if stats.TotalCheckpoints > 0 {
		stats.OldestTimestamp = time.UnixMicro(oldest).UTC()
		stats.NewestTimestamp = time.UnixMicro(newest).UTC()
	}

	if err = s.countInto(ctx, stats.PerThread, `
		SELECT thread_id, COUNT(*)
		FROM rewind_checkpoints`+where+`
		GROUP BY thread_id`, args...); err != nil {
		return nil, err
	}

	stageWhere := ` WHERE stage <> ''`
	if thread != "" {
		stageWhere = ` WHERE thread_id = $1 AND stage <> ''`
	}
	if err = s.countInto(ctx, stats.PerStage, `
		SELECT stage, COUNT(*)
		FROM rewind_checkpoints`+stageWhere+`
		GROUP BY stage`, args...); err != nil {
		return nil, err
	}

	return stats, nil
}

// countInto runs a (label, count) aggregation query into dst.
func (s *Store) countInto(ctx context.Context, dst map[string]int64, stmt string, args ...any) error {
	rows, err := s.db.Query(ctx, stmt, args...)
	if err != nil {
		return &PersistenceError{Tier: "durable", Op: "stats", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var label string
		var n int64
		if err := rows.Scan(&label, &n); err != nil {
			return &PersistenceError{Tier: "durable", Op: "stats", Err: err}
		}
		dst[label] = n
	}
	if err := rows.Err(); err != nil {
		return &PersistenceError{Tier: "durable", Op: "stats", Err: err}
	}
	return nil
}

// Namespaces returns a thread's distinct namespaces, sorted. An empty
// result means the thread has no checkpoints.
func (s *Store) Namespaces(ctx context.Context, thread string) ([]string, error) {
	ctx, end := s.span(ctx, "namespaces",
		attribute.String("rewind.thread_id", thread),
	)
	var err error
	defer func() { end(err) }()

	if thread == "" {
		err = ErrMissingThreadID
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT namespace FROM rewind_checkpoints
		WHERE thread_id = $1
		ORDER BY namespace`,
		thread,
	)
	if err != nil {
		err = &PersistenceError{Tier: "durable", Op: "namespaces", Err: err}
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var ns string
		if scanErr := rows.Scan(&ns); scanErr != nil {
			err = &PersistenceError{Tier: "durable", Op: "namespaces", Err: scanErr}
			return nil, err
		}
		out = append(out, ns)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		err = &PersistenceError{Tier: "durable", Op: "namespaces", Err: rowsErr}
		return nil, err
	}
	return out, nil
}
