package rewind_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/xraph/rewind"
)

// ──────────────────────────────────────────────────
// Cleanup
// ──────────────────────────────────────────────────

func TestCleanup_RemovesOnlyOlderThanHorizon(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	put(t, s, "T1", "", "old-1", "", now.Add(-10*24*time.Hour), nil)
	put(t, s, "T1", "", "old-2", "", now.Add(-5*24*time.Hour), nil)
	put(t, s, "T2", "", "old-3", "", now.Add(-3*24*time.Hour), nil)
	put(t, s, "T1", "", "new-1", "", now.Add(-24*time.Hour), nil)
	put(t, s, "T2", "", "new-2", "", now.Add(-time.Hour), nil)

	n, err := s.Cleanup(ctx, 2*24*time.Hour)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if n != 3 {
		t.Errorf("removed = %d, want 3", n)
	}

	for _, tt := range []struct {
		thread string
		want   []string
	}{
		{"T1", []string{"new-1"}},
		{"T2", []string{"new-2"}},
	} {
		got, err := s.List(ctx, tt.thread, "")
		if err != nil {
			t.Fatalf("List %s: %v", tt.thread, err)
		}
		if !reflect.DeepEqual(ids(got), tt.want) {
			t.Errorf("%s survivors = %v, want %v", tt.thread, ids(got), tt.want)
		}
	}
}

func TestCleanup_EmptyStore(t *testing.T) {
	t.Parallel()
	s := newStore(t)

	n, err := s.Cleanup(context.Background(), time.Hour)
	if err != nil || n != 0 {
		t.Fatalf("n=%d err=%v, want 0/nil", n, err)
	}
}

func TestCleanup_SecondPassRemovesNothing(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := context.Background()

	put(t, s, "T1", "", "old", "", time.Now().UTC().Add(-48*time.Hour), nil)

	if n, err := s.Cleanup(ctx, 24*time.Hour); err != nil || n != 1 {
		t.Fatalf("first pass: n=%d err=%v", n, err)
	}
	if n, err := s.Cleanup(ctx, 24*time.Hour); err != nil || n != 0 {
		t.Fatalf("second pass: n=%d err=%v, want 0/nil", n, err)
	}
}

// ──────────────────────────────────────────────────
// Stats
// ──────────────────────────────────────────────────

func TestStats(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	put(t, s, "T1", "", "c1", "", base, map[string]any{"stage": "plan"})
	put(t, s, "T1", "", "c2", "", base.Add(time.Minute), map[string]any{"stage": "plan"})
	put(t, s, "T1", "agents", "c3", "", base.Add(2*time.Minute), map[string]any{"stage": "build"})
	put(t, s, "T2", "", "c4", "", base.Add(3*time.Minute), nil)
	put(t, s, "T2", "", "c5", "", base.Add(4*time.Minute), map[string]any{"stage": "ship"})

	stats, err := s.Stats(ctx, "")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalCheckpoints != 5 {
		t.Errorf("total = %d, want 5", stats.TotalCheckpoints)
	}
	if !reflect.DeepEqual(stats.PerThread, map[string]int64{"T1": 3, "T2": 2}) {
		t.Errorf("per thread = %v", stats.PerThread)
	}
	// Checkpoints without a stage stay out of the stage breakdown.
	if !reflect.DeepEqual(stats.PerStage, map[string]int64{"plan": 2, "build": 1, "ship": 1}) {
		t.Errorf("per stage = %v", stats.PerStage)
	}
	if !stats.OldestTimestamp.Equal(base) {
		t.Errorf("oldest = %v, want %v", stats.OldestTimestamp, base)
	}
	if !stats.NewestTimestamp.Equal(base.Add(4 * time.Minute)) {
		t.Errorf("newest = %v", stats.NewestTimestamp)
	}
}

func TestStats_ScopedToThread(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	put(t, s, "T1", "", "c1", "", base, map[string]any{"stage": "plan"})
	put(t, s, "T2", "", "c2", "", base.Add(time.Minute), map[string]any{"stage": "ship"})

	stats, err := s.Stats(context.Background(), "T1")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalCheckpoints != 1 {
		t.Errorf("total = %d, want 1", stats.TotalCheckpoints)
	}
	if !reflect.DeepEqual(stats.PerThread, map[string]int64{"T1": 1}) {
		t.Errorf("per thread = %v", stats.PerThread)
	}
	if !reflect.DeepEqual(stats.PerStage, map[string]int64{"plan": 1}) {
		t.Errorf("per stage = %v", stats.PerStage)
	}
}

func TestStats_EmptyStore(t *testing.T) {
	t.Parallel()
	s := newStore(t)

	stats, err := s.Stats(context.Background(), "")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalCheckpoints != 0 {
		t.Errorf("total = %d", stats.TotalCheckpoints)
	}
	if !stats.OldestTimestamp.IsZero() || !stats.NewestTimestamp.IsZero() {
		t.Errorf("empty store has timestamps: %v / %v",
			stats.OldestTimestamp, stats.NewestTimestamp)
	}
}

// ──────────────────────────────────────────────────
// Namespaces
// ──────────────────────────────────────────────────

func TestNamespaces(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	now := time.Now().UTC()

	put(t, s, "T1", "tools", "c1", "", now, nil)
	put(t, s, "T1", "", "c2", "", now, nil)
	put(t, s, "T1", "agents", "c3", "", now, nil)
	put(t, s, "T1", "agents", "c4", "", now, nil)
	put(t, s, "T2", "other", "c5", "", now, nil)

	got, err := s.Namespaces(context.Background(), "T1")
	if err != nil {
		t.Fatalf("Namespaces: %v", err)
	}
	want := []string{"", "agents", "tools"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("namespaces = %v, want %v", got, want)
	}
}

func TestNamespaces_UnknownThread(t *testing.T) {
	t.Parallel()
	s := newStore(t)

	got, err := s.Namespaces(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("Namespaces: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("namespaces = %v, want none", got)
	}
}

func TestNamespaces_Validation(t *testing.T) {
	t.Parallel()
	s := newStore(t)

	if _, err := s.Namespaces(context.Background(), ""); !errors.Is(err, rewind.ErrMissingThreadID) {
		t.Fatalf("got %v, want ErrMissingThreadID", err)
	}
}
