package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/rewind/ext"
)

// meterName is the instrumentation scope name for rewind metrics.
const meterName = "github.com/xraph/rewind"

// Compile-time interface checks.
var (
	_ ext.Extension          = (*MetricsExtension)(nil)
	_ ext.CheckpointSaved    = (*MetricsExtension)(nil)
	_ ext.CheckpointDeleted  = (*MetricsExtension)(nil)
	_ ext.ThreadDeleted      = (*MetricsExtension)(nil)
	_ ext.RetentionCompleted = (*MetricsExtension)(nil)
)

// MetricsExtension records checkpoint lifecycle metrics. Register it as
// a Rewind extension to automatically track save rates, payload sizes,
// deletions, and retention purge volumes.
//
// Instruments:
//   - rewind.checkpoints.saved (Int64Counter): checkpoints written,
//     with attributes: thread, stage
//   - rewind.payload.size (Int64Histogram): sealed payload bytes,
//     with attributes: thread, stage
//   - rewind.checkpoints.deleted (Int64Counter): checkpoints removed,
//     one per Delete, row count for DeleteThread, with attribute: thread
//   - rewind.retention.purged (Int64Counter): rows removed by retention
type MetricsExtension struct {
	saved       metric.Int64Counter
	payloadSize metric.Int64Histogram
	deleted     metric.Int64Counter
	purged      metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension using the global OTel
// MeterProvider. If none is configured, noop instruments are used and
// the extension costs nothing.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter. This variant allows injecting a specific
// MeterProvider for testing.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	// Create instruments once at construction time. OTel instruments
	// are safe for concurrent use. On error, the API returns noop
	// instruments so the extension degrades gracefully.
	saved, sErr := meter.Int64Counter(
		"rewind.checkpoints.saved",
		metric.WithDescription("Total number of checkpoints written"),
		metric.WithUnit("{checkpoint}"),
	)
	_ = sErr // noop fallback guaranteed by OTel API contract

	payloadSize, pErr := meter.Int64Histogram(
		"rewind.payload.size",
		metric.WithDescription("Size of sealed checkpoint payloads"),
		metric.WithUnit("By"),
	)
	_ = pErr // noop fallback guaranteed by OTel API contract

	deleted, dErr := meter.Int64Counter(
		"rewind.checkpoints.deleted",
		metric.WithDescription("Total number of checkpoints removed"),
		metric.WithUnit("{checkpoint}"),
	)
	_ = dErr // noop fallback guaranteed by OTel API contract

	purged, rErr := meter.Int64Counter(
		"rewind.retention.purged",
		metric.WithDescription("Total number of checkpoints removed by retention cycles"),
		metric.WithUnit("{checkpoint}"),
	)
	_ = rErr // noop fallback guaranteed by OTel API contract

	return &MetricsExtension{
		saved:       saved,
		payloadSize: payloadSize,
		deleted:     deleted,
		purged:      purged,
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ── Checkpoint lifecycle hooks ──────────────────────

// OnCheckpointSaved implements ext.CheckpointSaved.
func (m *MetricsExtension) OnCheckpointSaved(ctx context.Context, e ext.SavedEvent) error {
	attrs := metric.WithAttributes(
		attribute.String("thread", e.ThreadID),
		attribute.String("stage", e.Stage),
	)
	m.saved.Add(ctx, 1, attrs)
	m.payloadSize.Record(ctx, int64(e.PayloadSize), attrs)
	return nil
}

// OnCheckpointDeleted implements ext.CheckpointDeleted.
func (m *MetricsExtension) OnCheckpointDeleted(ctx context.Context, e ext.DeletedEvent) error {
	m.deleted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("thread", e.ThreadID),
	))
	return nil
}

// OnThreadDeleted implements ext.ThreadDeleted.
func (m *MetricsExtension) OnThreadDeleted(ctx context.Context, e ext.ThreadDeletedEvent) error {
	m.deleted.Add(ctx, e.Removed, metric.WithAttributes(
		attribute.String("thread", e.ThreadID),
	))
	return nil
}

// ── Retention lifecycle hooks ───────────────────────

// OnRetentionCompleted implements ext.RetentionCompleted.
func (m *MetricsExtension) OnRetentionCompleted(ctx context.Context, e ext.RetentionEvent) error {
	m.purged.Add(ctx, e.Removed)
	return nil
}
