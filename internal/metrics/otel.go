package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

var (
	otelOnce sync.Once
	otelErr  error
)

// InitOTelMetrics registers an observable gauge reporting the SQLite totals.
// Call it after the global meter provider is installed.
func InitOTelMetrics() error {
	otelOnce.Do(func() {
		_, otelErr = otel.Meter("leakscope/metrics").Int64ObservableGauge(
			"leakscope.invocations.total",
			metric.WithDescription("Cumulative invocations by mode (search, export, http, mcp)"),
			metric.WithUnit("{invocations}"),
			metric.WithInt64Callback(observeInvocations),
		)
		if otelErr != nil {
			_, log := current()
			log.Warn("create invocation gauge failed", zap.Error(otelErr))
		}
	})
	return otelErr
}

func observeInvocations(ctx context.Context, o metric.Int64Observer) error {
	totals := Stats(ctx)
	for _, mode := range Modes() {
		o.Observe(totals[mode], metric.WithAttributes(attribute.String("mode", string(mode))))
	}
	return nil
}

// ResetOTelForTesting allows InitOTelMetrics to run again.
func ResetOTelForTesting() {
	otelOnce = sync.Once{}
	otelErr = nil
}
