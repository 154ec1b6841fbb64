// Package retention runs periodic checkpoint cleanup against a
// horizon. A Manager owns one background goroutine that invokes a
// Cleaner on a fixed interval or a cron schedule and reports each
// cycle's outcome.
package retention

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/xraph/rewind/ext"
)

// ErrAlreadyRunning is returned by Start when the manager's loop is
// already active.
var ErrAlreadyRunning = errors.New("retention: manager already running")

// Cleaner deletes checkpoints older than the horizon and returns how
// many it removed. *rewind.Store satisfies this.
type Cleaner interface {
	Cleanup(ctx context.Context, horizon time.Duration) (int64, error)
}

// Emitter emits retention lifecycle events.
// ext.Registry satisfies this interface via EmitRetentionCompleted.
type Emitter interface {
	EmitRetentionCompleted(ctx context.Context, e ext.RetentionEvent)
}

// Option configures a Manager.
type Option func(*Manager)

// WithInterval sets how often cleanup cycles run. Ignored when a cron
// schedule is set.
func WithInterval(d time.Duration) Option {
	return func(m *Manager) { m.interval = d }
}

// WithSchedule sets a cron expression for cleanup cycles, overriding
// the interval. Standard 5-field expressions and descriptors like
// "@daily" or "@every 6h" are accepted. The expression is validated at
// Start.
func WithSchedule(expr string) Option {
	return func(m *Manager) { m.schedule = expr }
}

// WithHorizon sets the maximum checkpoint age. Each cycle deletes
// everything older.
func WithHorizon(d time.Duration) Option {
	return func(m *Manager) { m.horizon = d }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithEmitter sets the lifecycle event emitter notified after each
// successful cycle.
func WithEmitter(e Emitter) Option {
	return func(m *Manager) { m.emitter = e }
}

// cronParser supports standard 5-field cron and descriptors like "@every 6h".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// Manager runs cleanup cycles on a background goroutine. A cycle that
// fails is logged and swallowed; the next cycle retries. Stop waits for
// the goroutine, so no cycle outlives it.
type Manager struct {
	cleaner Cleaner
	emitter Emitter
	logger  *slog.Logger

	interval time.Duration
	schedule string
	horizon  time.Duration

	mu      sync.Mutex
	running bool
	sched   cronlib.Schedule
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a Manager over the given Cleaner. Defaults: hourly
// cycles, 30-day horizon.
func New(c Cleaner, opts ...Option) *Manager {
	m := &Manager{
		cleaner:  c,
		logger:   slog.Default(),
		interval: time.Hour,
		horizon:  30 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the cleanup loop. It returns ErrAlreadyRunning on a
// second Start without an intervening Stop, and an error when the cron
// expression does not parse.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrAlreadyRunning
	}

	if m.schedule != "" {
		sched, err := cronParser.Parse(m.schedule)
		if err != nil {
			return err
		}
		m.sched = sched
	}

	m.stopCh = make(chan struct{})
	m.running = true
	m.wg.Add(1)
	go m.run(m.stopCh)

	m.logger.Info("retention manager started",
		slog.Duration("horizon", m.horizon),
		slog.String("schedule", m.schedule),
		slog.Duration("interval", m.interval),
	)
	return nil
}

// Stop signals the loop to stop and waits for it to finish. Stopping a
// manager that is not running is a no-op. A stopped manager can be
// started again.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	stopCh := m.stopCh
	m.mu.Unlock()

	close(stopCh)
	m.wg.Wait()
	m.logger.Info("retention manager stopped")
}

// run fires cleanup cycles until stopped. Each wait is computed fresh
// so cron schedules track wall-clock boundaries.
func (m *Manager) run(stopCh chan struct{}) {
	defer m.wg.Done()

	for {
		timer := time.NewTimer(m.untilNext(time.Now()))
		select {
		case <-stopCh:
			timer.Stop()
			return
		case <-timer.C:
			m.runCycle()
		}
	}
}

// untilNext returns how long to wait before the next cycle.
func (m *Manager) untilNext(now time.Time) time.Duration {
	if m.sched != nil {
		return m.sched.Next(now).Sub(now)
	}
	return m.interval
}

// runCycle executes one cleanup pass. Failures never escape: the loop
// must keep ticking no matter what the durable tier does.
func (m *Manager) runCycle() {
	ctx := context.Background()
	start := time.Now()

	removed, err := m.cleaner.Cleanup(ctx, m.horizon)
	elapsed := time.Since(start)
	if err != nil {
		m.logger.Error("retention cycle failed",
			slog.Duration("horizon", m.horizon),
			slog.String("error", err.Error()),
		)
		return
	}

	m.logger.Info("retention cycle completed",
		slog.Int64("removed", removed),
		slog.Duration("horizon", m.horizon),
		slog.Duration("elapsed", elapsed),
	)

	if m.emitter != nil {
		m.emitter.EmitRetentionCompleted(ctx, ext.RetentionEvent{
			Horizon: m.horizon,
			Removed: removed,
			Elapsed: elapsed,
		})
	}
}
