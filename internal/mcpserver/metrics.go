package mcpserver

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

var (
	mcpMetricsOnce      sync.Once
	mcpRequestCounter   metric.Int64Counter
	mcpErrorCounter     metric.Int64Counter
	mcpLatencyHistogram metric.Float64Histogram
)

func initMCPMetrics() {
	mcpMetricsOnce.Do(func() {
		meter := otel.Meter("leakscope/mcpserver")

		var err error
		mcpRequestCounter, err = meter.Int64Counter(
			"leakscope.mcp.requests.total",
			metric.WithDescription("Total MCP tool calls"),
		)
		if err != nil {
			zap.L().Warn("failed to create MCP request counter", zap.Error(err))
		}

		mcpErrorCounter, err = meter.Int64Counter(
			"leakscope.mcp.errors.total",
			metric.WithDescription("Total MCP tool calls that returned an error result"),
		)
		if err != nil {
			zap.L().Warn("failed to create MCP error counter", zap.Error(err))
		}

		mcpLatencyHistogram, err = meter.Float64Histogram(
			"leakscope.mcp.response_time",
			metric.WithDescription("MCP tool response time (ms)"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			zap.L().Warn("failed to create MCP latency histogram", zap.Error(err))
		}
	})
}

func recordMCPMetrics(ctx context.Context, tool string, duration time.Duration, errType string) {
	initMCPMetrics()
	attrs := []attribute.KeyValue{attribute.String("tool", tool)}
	if mcpRequestCounter != nil {
		mcpRequestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if mcpLatencyHistogram != nil {
		mcpLatencyHistogram.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	}
	if errType != "" && mcpErrorCounter != nil {
		errAttrs := append(attrs, attribute.String("error.type", errType))
		mcpErrorCounter.Add(ctx, 1, metric.WithAttributes(errAttrs...))
	}
}
