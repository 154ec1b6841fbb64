package rewind

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
)

// Lineage walks a checkpoint's ParentID chain toward the root and
// returns the path newest-first, starting with the named checkpoint
// itself. Parent references are not verified at put time, so the walk
// is defensive about bad data: a dangling parent ends the chain
// silently and a reference cycle stops at the first repeated id. Only
// the starting checkpoint must exist; its absence is ErrNotFound.
//
// Steps go through Get, so a warm cache answers most of the walk.
func (s *Store) Lineage(ctx context.Context, thread, namespace, id string) ([]*Checkpoint, error) {
	ctx, end := s.span(ctx, "lineage",
		attribute.String("rewind.thread_id", thread),
		attribute.String("rewind.namespace", namespace),
		attribute.String("rewind.checkpoint_id", id),
	)
	var err error
	defer func() { end(err) }()

	cp, err := s.Get(ctx, thread, namespace, id)
	if err != nil {
		return nil, err
	}

	chain := []*Checkpoint{cp}
	visited := map[string]bool{cp.ID: true}

	for cp.ParentID != "" && !visited[cp.ParentID] {
		parent, getErr := s.Get(ctx, thread, namespace, cp.ParentID)
		if errors.Is(getErr, ErrNotFound) {
			break
		}
		if getErr != nil {
			err = getErr
			return nil, err
		}
		chain = append(chain, parent)
		visited[parent.ID] = true
		cp = parent
	}
	return chain, nil
}
