package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/openfield/cascade/workflow"
)

// meterName is the instrumentation scope name for cascade metrics.
const meterName = "github.com/openfield/cascade"

// Metrics returns middleware that records per-node execution metrics using
// the global OTel MeterProvider. If no MeterProvider is configured, noop
// instruments are used and this middleware becomes a pass-through.
//
// Instruments:
//   - cascade.node.duration (Float64Histogram): execution time in seconds,
//     with attributes: workflow_type, node, status ("ok", "paused", "error")
//   - cascade.node.executions (Int64Counter): total executions,
//     with attributes: workflow_type, node, status ("ok", "paused", "error")
func Metrics() Middleware {
	meter := otel.Meter(meterName)
	return MetricsWithMeter(meter)
}

// MetricsWithMeter returns metrics middleware using the provided meter.
// This variant allows injecting a specific MeterProvider for testing.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// Create instruments once at middleware construction time.
	// OTel instruments are safe for concurrent use. On error, the API
	// returns noop instruments so the middleware degrades gracefully.
	duration, dErr := meter.Float64Histogram(
		"cascade.node.duration",
		metric.WithDescription("Duration of node execution in seconds"),
		metric.WithUnit("s"),
	)
	_ = dErr // noop fallback guaranteed by OTel API contract

	executions, eErr := meter.Int64Counter(
		"cascade.node.executions",
		metric.WithDescription("Total number of node executions"),
		metric.WithUnit("{execution}"),
	)
	_ = eErr // noop fallback guaranteed by OTel API contract

	return func(ctx context.Context, s *workflow.State, node string, next Handler) (workflow.Update, error) {
		start := time.Now()
		upd, err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		switch {
		case err != nil:
			status = "error"
		case upd.Status == workflow.StatusPaused:
			status = "paused"
		}

		attrs := metric.WithAttributes(
			attribute.String("workflow_type", s.Type),
			attribute.String("node", node),
			attribute.String("status", status),
		)

		duration.Record(ctx, elapsed, attrs)
		executions.Add(ctx, 1, attrs)

		return upd, err
	}
}
