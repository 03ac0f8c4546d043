// Package telemetry provides the per-session OpenTelemetry span and counters
// a Session's Stringify/Parse calls are wrapped in. Grounded on vertex.go's
// package-level meter/tracer globals and its Record-per-unit-of-work pattern,
// adapted from per-packet metrics to per-producer/per-row metrics.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	meter  = otel.Meter("tson")
	tracer = otel.Tracer("tson")

	producersRegistered, _ = meter.Int64Counter("tson.producers.registered")
	rowsEmitted, _         = meter.Int64Counter("tson.rows.emitted")
	rowsDropped, _         = meter.Int64Counter("tson.rows.dropped")
)

// StartStringify opens the root span for one Stringify call.
func StartStringify(ctx context.Context) (context.Context, trace.Span) {
	return tracer.Start(ctx, "tson.stringify")
}

// StartParse opens the root span for one Parse call.
func StartParse(ctx context.Context) (context.Context, trace.Span) {
	return tracer.Start(ctx, "tson.parse")
}

// ProducerRegistered records that a new async producer was discovered during
// fold, either in the head or in a later event's payload.
func ProducerRegistered(ctx context.Context) {
	producersRegistered.Add(ctx, 1, metric.WithAttributes())
}

// RowEmitted records one tail row written to the sink.
func RowEmitted(ctx context.Context) {
	rowsEmitted.Add(ctx, 1, metric.WithAttributes())
}

// RowsDropped adds n to the dropped-rows counter. Stringify calls it when it
// is cancelled with producers still draining, passing the number of those
// producers, so the counter counts producers cut off rather than the rows
// they would have emitted.
func RowsDropped(ctx context.Context, n int64) {
	if n <= 0 {
		return
	}
	rowsDropped.Add(ctx, n, metric.WithAttributes())
}
