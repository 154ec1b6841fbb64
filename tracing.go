package rewind

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// span starts an OpenTelemetry span around one store operation when
// tracing is enabled, returning the derived context and an end function
// that records the operation's outcome. ErrNotFound is a normal result,
// not a span error.
func (s *Store) span(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if s.tracer == nil {
		return ctx, func(error) {}
	}
	ctx, sp := s.tracer.Start(ctx, "rewind."+op,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	return ctx, func(err error) {
		if err != nil && !errors.Is(err, ErrNotFound) {
			sp.RecordError(err)
			sp.SetStatus(codes.Error, err.Error())
		} else {
			sp.SetStatus(codes.Ok, "")
		}
		sp.End()
	}
}
