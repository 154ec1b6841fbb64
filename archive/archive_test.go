package archive_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xraph/rewind"
	"github.com/xraph/rewind/archive"
	"github.com/xraph/rewind/cache/memory"
	"github.com/xraph/rewind/durable/sqlite"
)

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func newTestStore(t *testing.T, opts ...rewind.Option) *rewind.Store {
	t.Helper()
	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	opts = append([]rewind.Option{rewind.WithCache(memory.New())}, opts...)
	s, err := rewind.New(db, opts...)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

// seedThread writes n checkpoints into (thread, ns) with ascending
// CreatedAt, chaining each to its predecessor.
func seedThread(t *testing.T, s *rewind.Store, thread, ns string, n int) []string {
	t.Helper()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ids := make([]string, 0, n)
	parent := ""
	for i := 0; i < n; i++ {
		id := "ckpt-" + string(rune('a'+i))
		cp := &rewind.Checkpoint{
			ThreadID:  thread,
			Namespace: ns,
			ID:        id,
			ParentID:  parent,
			Type:      "snapshot",
			Payload:   []byte(`{"step":` + id + `}`),
			Metadata:  map[string]any{"stage": "run", "seq": i},
		}
		cp.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if _, err := s.Put(context.Background(), cp); err != nil {
			t.Fatalf("seed put %s: %v", id, err)
		}
		ids = append(ids, id)
		parent = id
	}
	return ids
}

// countingSource counts List calls on its way to a real store.
type countingSource struct {
	inner *rewind.Store

	mu        sync.Mutex
	listCalls int
}

func (c *countingSource) Namespaces(ctx context.Context, thread string) ([]string, error) {
	return c.inner.Namespaces(ctx, thread)
}

func (c *countingSource) List(ctx context.Context, thread, ns string, opts ...rewind.ListOption) ([]*rewind.Checkpoint, error) {
	c.mu.Lock()
	c.listCalls++
	c.mu.Unlock()
	return c.inner.List(ctx, thread, ns, opts...)
}

func (c *countingSource) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listCalls
}

// ──────────────────────────────────────────────────
// Export
// ──────────────────────────────────────────────────

func TestExport_HeaderOnly(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	var buf bytes.Buffer
	exp := archive.NewExporter(s)
	n, err := exp.Export(context.Background(), &buf, "empty-thread")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if n != 0 {
		t.Errorf("records = %d, want 0", n)
	}

	dec := json.NewDecoder(&buf)
	var h archive.Header
	if err := dec.Decode(&h); err != nil {
		t.Fatalf("decode header: %v", err)
	}
	if h.FormatVersion != archive.FormatVersion {
		t.Errorf("format version = %d, want %d", h.FormatVersion, archive.FormatVersion)
	}
	if h.ThreadID != "empty-thread" {
		t.Errorf("thread id = %q, want %q", h.ThreadID, "empty-thread")
	}
	if !strings.HasPrefix(h.ArchiveID, "exp_") {
		t.Errorf("archive id %q missing exp_ prefix", h.ArchiveID)
	}
	if dec.More() {
		t.Error("expected no record lines after the header")
	}
}

func TestExport_MissingThreadID(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	exp := archive.NewExporter(s)
	if _, err := exp.Export(context.Background(), &bytes.Buffer{}, ""); !errors.Is(err, rewind.ErrMissingThreadID) {
		t.Errorf("err = %v, want ErrMissingThreadID", err)
	}
}

func TestExport_PagesWithCursor(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ids := seedThread(t, s, "T1", "", 5)

	src := &countingSource{inner: s}
	exp := archive.NewExporter(src, archive.WithBatchSize(2))

	var buf bytes.Buffer
	n, err := exp.Export(context.Background(), &buf, "T1")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if n != 5 {
		t.Fatalf("records = %d, want 5", n)
	}
	// Pages of 2, 2, 1.
	if got := src.calls(); got != 3 {
		t.Errorf("list calls = %d, want 3", got)
	}

	dec := json.NewDecoder(&buf)
	var h archive.Header
	if err := dec.Decode(&h); err != nil {
		t.Fatalf("decode header: %v", err)
	}

	// Records replay oldest first.
	var got []string
	for dec.More() {
		var rec archive.Record
		if err := dec.Decode(&rec); err != nil {
			t.Fatalf("decode record: %v", err)
		}
		got = append(got, rec.CheckpointID)
	}
	if !reflect.DeepEqual(got, ids) {
		t.Errorf("record order = %v, want %v", got, ids)
	}
}

func TestExport_RateLimitStillCompletes(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	seedThread(t, s, "T1", "", 4)

	exp := archive.NewExporter(s,
		archive.WithBatchSize(2),
		archive.WithRateLimit(100, 1),
	)

	var buf bytes.Buffer
	n, err := exp.Export(context.Background(), &buf, "T1")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if n != 4 {
		t.Errorf("records = %d, want 4", n)
	}
}

// ──────────────────────────────────────────────────
// Import
// ──────────────────────────────────────────────────

func TestImport_BadHeader(t *testing.T) {
	t.Parallel()
	imp := archive.NewImporter(newTestStore(t))

	for _, input := range []string{"", "not json\n"} {
		if _, err := imp.Import(context.Background(), strings.NewReader(input)); !errors.Is(err, archive.ErrBadHeader) {
			t.Errorf("input %q: err = %v, want ErrBadHeader", input, err)
		}
	}
}

func TestImport_UnsupportedVersion(t *testing.T) {
	t.Parallel()
	imp := archive.NewImporter(newTestStore(t))

	stream := `{"archive_id":"exp_1","format_version":99,"thread_id":"T1","created_at":"2025-06-01T12:00:00Z"}` + "\n"
	if _, err := imp.Import(context.Background(), strings.NewReader(stream)); !errors.Is(err, archive.ErrUnsupportedVersion) {
		t.Errorf("err = %v, want ErrUnsupportedVersion", err)
	}
}

func TestExportImport_RoundTrip(t *testing.T) {
	t.Parallel()
	src := newTestStore(t)
	seedThread(t, src, "T1", "", 3)
	seedThread(t, src, "T1", "agents", 2)

	var buf bytes.Buffer
	exported, err := archive.NewExporter(src).Export(context.Background(), &buf, "T1")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if exported != 5 {
		t.Fatalf("exported = %d, want 5", exported)
	}

	// The destination runs without compression; archives carry raw
	// payload bytes and the target seals them its own way.
	dst := newTestStore(t, rewind.WithCompression(false))
	restored, err := archive.NewImporter(dst).Import(context.Background(), &buf)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if restored != 5 {
		t.Fatalf("restored = %d, want 5", restored)
	}

	ctx := context.Background()
	for _, ns := range []string{"", "agents"} {
		want, err := src.List(ctx, "T1", ns)
		if err != nil {
			t.Fatalf("list source %q: %v", ns, err)
		}
		got, err := dst.List(ctx, "T1", ns)
		if err != nil {
			t.Fatalf("list destination %q: %v", ns, err)
		}
		if len(got) != len(want) {
			t.Fatalf("namespace %q: %d checkpoints, want %d", ns, len(got), len(want))
		}
		for i := range want {
			if got[i].ID != want[i].ID {
				t.Errorf("namespace %q[%d]: id = %q, want %q", ns, i, got[i].ID, want[i].ID)
			}
			if got[i].ParentID != want[i].ParentID {
				t.Errorf("%s: parent = %q, want %q", got[i].ID, got[i].ParentID, want[i].ParentID)
			}
			if !bytes.Equal(got[i].Payload, want[i].Payload) {
				t.Errorf("%s: payload mismatch", got[i].ID)
			}
			if !reflect.DeepEqual(got[i].Metadata, want[i].Metadata) {
				t.Errorf("%s: metadata = %v, want %v", got[i].ID, got[i].Metadata, want[i].Metadata)
			}
			if !got[i].CreatedAt.Equal(want[i].CreatedAt) {
				t.Errorf("%s: created_at = %v, want %v", got[i].ID, got[i].CreatedAt, want[i].CreatedAt)
			}
		}
	}
}

func TestImport_ThreadOverride(t *testing.T) {
	t.Parallel()
	src := newTestStore(t)
	seedThread(t, src, "T1", "", 2)

	var buf bytes.Buffer
	if _, err := archive.NewExporter(src).Export(context.Background(), &buf, "T1"); err != nil {
		t.Fatalf("Export: %v", err)
	}

	dst := newTestStore(t)
	imp := archive.NewImporter(dst, archive.WithThreadOverride("T2"))
	if _, err := imp.Import(context.Background(), &buf); err != nil {
		t.Fatalf("Import: %v", err)
	}

	ctx := context.Background()
	moved, err := dst.List(ctx, "T2", "")
	if err != nil {
		t.Fatalf("list T2: %v", err)
	}
	if len(moved) != 2 {
		t.Errorf("T2 checkpoints = %d, want 2", len(moved))
	}
	orig, err := dst.List(ctx, "T1", "")
	if err != nil {
		t.Fatalf("list T1: %v", err)
	}
	if len(orig) != 0 {
		t.Errorf("T1 checkpoints = %d, want 0", len(orig))
	}
}

func TestImport_Idempotent(t *testing.T) {
	t.Parallel()
	src := newTestStore(t)
	seedThread(t, src, "T1", "", 3)

	var buf bytes.Buffer
	if _, err := archive.NewExporter(src).Export(context.Background(), &buf, "T1"); err != nil {
		t.Fatalf("Export: %v", err)
	}
	stream := buf.Bytes()

	dst := newTestStore(t)
	ctx := context.Background()
	for run := 0; run < 2; run++ {
		if _, err := archive.NewImporter(dst).Import(ctx, bytes.NewReader(stream)); err != nil {
			t.Fatalf("import run %d: %v", run, err)
		}
	}

	stats, err := dst.Stats(ctx, "T1")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalCheckpoints != 3 {
		t.Errorf("total after re-import = %d, want 3", stats.TotalCheckpoints)
	}
}

// errSinkFull simulates a destination rejecting writes.
var errSinkFull = errors.New("sink full")

type failingSink struct {
	failOn string
}

func (f *failingSink) Put(ctx context.Context, cp *rewind.Checkpoint) (rewind.Handle, error) {
	if err := ctx.Err(); err != nil {
		return rewind.Handle{}, err
	}
	if cp.ID == f.failOn {
		return rewind.Handle{}, errSinkFull
	}
	return rewind.Handle{ThreadID: cp.ThreadID, Namespace: cp.Namespace, CheckpointID: cp.ID}, nil
}

func TestImport_FirstFailureWins(t *testing.T) {
	t.Parallel()
	src := newTestStore(t)
	seedThread(t, src, "T1", "", 4)

	var buf bytes.Buffer
	if _, err := archive.NewExporter(src).Export(context.Background(), &buf, "T1"); err != nil {
		t.Fatalf("Export: %v", err)
	}

	sink := &failingSink{failOn: "ckpt-b"}
	imp := archive.NewImporter(sink, archive.WithWorkers(1))
	restored, err := imp.Import(context.Background(), &buf)
	if !errors.Is(err, errSinkFull) {
		t.Fatalf("err = %v, want errSinkFull", err)
	}
	if restored >= 4 {
		t.Errorf("restored = %d, want < 4", restored)
	}
}
