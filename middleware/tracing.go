package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/openfield/cascade/workflow"
)

// tracerName is the instrumentation scope name for cascade tracing.
const tracerName = "github.com/openfield/cascade"

// Tracing returns middleware that wraps node execution in an OpenTelemetry
// span. If no TracerProvider is configured globally, the default noop tracer
// is used and this middleware becomes a pass-through with zero overhead.
//
// Span attributes include: cascade.workflow.id, cascade.workflow.type,
// cascade.node, cascade.tenant_id. On error, the span status is set to
// codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, s *workflow.State, node string, next Handler) (workflow.Update, error) {
		ctx, span := tracer.Start(ctx, "cascade.node.execute",
			trace.WithAttributes(
				attribute.String("cascade.workflow.id", s.ID.String()),
				attribute.String("cascade.workflow.type", s.Type),
				attribute.String("cascade.node", node),
				attribute.String("cascade.tenant_id", s.TenantID),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		upd, err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return upd, err
	}
}
