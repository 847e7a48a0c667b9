package search

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/ca-srg/leakscope/internal/record"
)

var searchTracer = otel.Tracer("leakscope/search")

const meterName = "leakscope/search"

type telemetry struct {
	requests       metric.Int64Counter
	duration       metric.Float64Histogram
	sourceRequests metric.Int64Counter
	sourceDuration metric.Float64Histogram
}

// newTelemetry builds the engine instruments from the global meter provider.
// Instrument errors fall back to no-op instruments.
func newTelemetry() *telemetry {
	meter := otel.Meter(meterName)
	fallback := noop.NewMeterProvider().Meter(meterName)

	t := &telemetry{}
	var err error
	if t.requests, err = meter.Int64Counter("leakscope.search.requests",
		metric.WithDescription("Searches executed, by outcome")); err != nil {
		t.requests, _ = fallback.Int64Counter("leakscope.search.requests")
	}
	if t.duration, err = meter.Float64Histogram("leakscope.search.duration",
		metric.WithDescription("End-to-end search latency"),
		metric.WithUnit("s")); err != nil {
		t.duration, _ = fallback.Float64Histogram("leakscope.search.duration")
	}
	if t.sourceRequests, err = meter.Int64Counter("leakscope.source.requests",
		metric.WithDescription("Source dispatches, by source and final state")); err != nil {
		t.sourceRequests, _ = fallback.Int64Counter("leakscope.source.requests")
	}
	if t.sourceDuration, err = meter.Float64Histogram("leakscope.source.duration",
		metric.WithDescription("Time until a source settled or the deadline passed"),
		metric.WithUnit("s")); err != nil {
		t.sourceDuration, _ = fallback.Float64Histogram("leakscope.source.duration")
	}
	return t
}

func (t *telemetry) recordSearch(ctx context.Context, outcome string, truncated bool, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.Bool("truncated", truncated),
	)
	t.requests.Add(ctx, 1, attrs)
	t.duration.Record(ctx, d.Seconds(), attrs)
}

func (t *telemetry) recordSource(ctx context.Context, status record.SourceStatus) {
	attrs := metric.WithAttributes(
		attribute.String("source", status.Name),
		attribute.String("state", string(status.State)),
	)
	t.sourceRequests.Add(ctx, 1, attrs)
	t.sourceDuration.Record(ctx, status.Duration.Seconds(), attrs)
}
