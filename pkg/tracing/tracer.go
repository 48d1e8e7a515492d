// Package tracing is the span helper used by the graph layer. Without a
// registered TracerProvider the global no-op provider makes every call inert.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "graphcore"

// Start opens a span as a child of the span in ctx. The caller ends it.
//
//	ctx, span := tracing.Start(ctx, "graph.paginate_count",
//	    attribute.String("graph.tx", "read"),
//	)
//	defer span.End()
func Start(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// Fail records err on span and marks the span as failed.
func Fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Degraded records err on span without failing it: the operation answered
// with an empty default.
func Degraded(span trace.Span, err error) {
	span.RecordError(err)
	span.SetAttributes(attribute.Bool("graph.degraded", true))
}
