// Package observability provides an OpenTelemetry metrics extension for
// Rewind. The MetricsExtension implements lifecycle hooks to record
// store-wide counters for checkpoint saves, deletions, payload sizes,
// and retention purges.
//
// For per-operation tracing, see rewind.WithTracing.
package observability
