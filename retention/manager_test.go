package retention_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/rewind/ext"
	"github.com/xraph/rewind/retention"
)

// ──────────────────────────────────────────────────
// Fakes
// ──────────────────────────────────────────────────

// fakeCleaner counts cleanup invocations and returns a canned result.
type fakeCleaner struct {
	mu      sync.Mutex
	calls   int
	horizon time.Duration
	removed int64
	err     error
}

func (f *fakeCleaner) Cleanup(_ context.Context, horizon time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.horizon = horizon
	return f.removed, f.err
}

func (f *fakeCleaner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeCleaner) lastHorizon() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.horizon
}

// captureEmitter records emitted retention events.
type captureEmitter struct {
	mu     sync.Mutex
	events []ext.RetentionEvent
}

func (c *captureEmitter) EmitRetentionCompleted(_ context.Context, e ext.RetentionEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *captureEmitter) all() []ext.RetentionEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ext.RetentionEvent, len(c.events))
	copy(out, c.events)
	return out
}

// waitForCalls polls until the cleaner has run at least n times.
func waitForCalls(t *testing.T, f *fakeCleaner, n int) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for f.count() < n {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d cleanup cycles, got %d", n, f.count())
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

// ──────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────

func TestManager_FiresWithinInterval(t *testing.T) {
	f := &fakeCleaner{removed: 3}
	m := retention.New(f,
		retention.WithInterval(10*time.Millisecond),
		retention.WithHorizon(time.Hour),
	)

	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	waitForCalls(t, f, 1)

	if got := f.lastHorizon(); got != time.Hour {
		t.Errorf("horizon = %v, want %v", got, time.Hour)
	}
}

func TestManager_EmitsRetentionCompleted(t *testing.T) {
	f := &fakeCleaner{removed: 42}
	em := &captureEmitter{}
	m := retention.New(f,
		retention.WithInterval(10*time.Millisecond),
		retention.WithHorizon(48*time.Hour),
		retention.WithEmitter(em),
	)

	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForCalls(t, f, 1)
	m.Stop()

	events := em.all()
	if len(events) == 0 {
		t.Fatal("expected at least one RetentionCompleted event")
	}
	if events[0].Removed != 42 {
		t.Errorf("Removed = %d, want 42", events[0].Removed)
	}
	if events[0].Horizon != 48*time.Hour {
		t.Errorf("Horizon = %v, want %v", events[0].Horizon, 48*time.Hour)
	}
}

func TestManager_StartTwice(t *testing.T) {
	m := retention.New(&fakeCleaner{}, retention.WithInterval(time.Hour))

	if err := m.Start(); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer m.Stop()

	if err := m.Start(); !errors.Is(err, retention.ErrAlreadyRunning) {
		t.Errorf("second Start = %v, want ErrAlreadyRunning", err)
	}
}

func TestManager_StopIsDeterministic(t *testing.T) {
	f := &fakeCleaner{}
	m := retention.New(f, retention.WithInterval(10*time.Millisecond))

	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForCalls(t, f, 1)
	m.Stop()

	// No cycle may run after Stop returns.
	settled := f.count()
	time.Sleep(50 * time.Millisecond)
	if got := f.count(); got != settled {
		t.Errorf("cleanup ran after Stop: %d calls, had %d at Stop", got, settled)
	}
}

func TestManager_SwallowsCleanupFailures(t *testing.T) {
	f := &fakeCleaner{err: errors.New("durable tier down")}
	em := &captureEmitter{}
	m := retention.New(f,
		retention.WithInterval(10*time.Millisecond),
		retention.WithEmitter(em),
	)

	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// The loop must keep ticking after failures.
	waitForCalls(t, f, 2)
	m.Stop()

	if events := em.all(); len(events) != 0 {
		t.Errorf("failed cycles emitted %d events, want 0", len(events))
	}
}

func TestManager_BadScheduleFailsStart(t *testing.T) {
	m := retention.New(&fakeCleaner{}, retention.WithSchedule("not a cron"))

	if err := m.Start(); err == nil {
		m.Stop()
		t.Fatal("expected Start to fail on an invalid cron expression")
	}
}

func TestManager_ScheduleOverridesInterval(t *testing.T) {
	f := &fakeCleaner{}
	m := retention.New(f,
		retention.WithInterval(time.Hour),
		retention.WithSchedule("@every 1s"),
	)

	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	// With only the hourly interval this would never fire in time.
	waitForCalls(t, f, 1)
}

func TestManager_StopWithoutStart(t *testing.T) {
	m := retention.New(&fakeCleaner{})
	m.Stop() // must not panic or block
}

func TestManager_RestartAfterStop(t *testing.T) {
	f := &fakeCleaner{}
	m := retention.New(f, retention.WithInterval(10*time.Millisecond))

	if err := m.Start(); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	waitForCalls(t, f, 1)
	m.Stop()

	if err := m.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	before := f.count()
	waitForCalls(t, f, before+1)
	m.Stop()
}
