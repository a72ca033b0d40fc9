package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Start opens an internal span named after the operation.
func Start(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer("medisub").Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal))
}

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
