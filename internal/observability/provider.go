package observability

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/ca-srg/leakscope/internal/types"
)

// Init installs global tracer and meter providers for the process. With
// telemetry disabled the providers are still installed so instrumented code
// runs unchanged, but nothing is sampled or exported.
func Init(ctx context.Context, rootCfg *types.Config, logger *zap.Logger) (ShutdownFunc, error) {
	noop := func(context.Context) error { return nil }
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg, err := LoadConfig(rootCfg)
	if err != nil {
		return noop, err
	}

	tp, err := InitTracer(ctx, cfg)
	if err != nil {
		return noop, err
	}
	mp, err := InitMeter(ctx, cfg)
	if err != nil {
		_ = NewShutdownFunc(tp, nil, logger)(ctx)
		return noop, err
	}

	if cfg.Enabled {
		logger.Info("opentelemetry enabled",
			zap.String("service", cfg.ServiceName),
			zap.String("protocol", cfg.ExporterProtocol),
			zap.String("sampler", cfg.TracesSampler))
	}
	return NewShutdownFunc(tp, mp, logger), nil
}

// InitTracer builds the tracer provider and installs it globally.
func InitTracer(ctx context.Context, cfg *Config) (*sdktrace.TracerProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("observability: tracer requires a config")
	}

	var tp *sdktrace.TracerProvider
	if !cfg.Enabled {
		tp = sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.NeverSample()))
	} else {
		exporter, err := NewTraceExporter(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("observability: trace exporter: %w", err)
		}
		res, err := newResource(ctx, cfg)
		if err != nil {
			return nil, err
		}
		tp = sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sampler(cfg)),
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(exporter),
		)
	}

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp, nil
}

// InitMeter builds the meter provider and installs it globally.
func InitMeter(ctx context.Context, cfg *Config) (*sdkmetric.MeterProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("observability: meter requires a config")
	}

	if !cfg.Enabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		return mp, nil
	}

	exporter, err := NewMetricExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("observability: metric exporter: %w", err)
	}
	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(cfg.MetricExportInterval))),
	)
	otel.SetMeterProvider(mp)
	return mp, nil
}

func sampler(cfg *Config) sdktrace.Sampler {
	switch strings.ToLower(cfg.TracesSampler) {
	case "always_off":
		return sdktrace.NeverSample()
	case "traceidratio":
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.TracesSamplerArg))
	case "parentbased_always_on":
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	default:
		return sdktrace.AlwaysSample()
	}
}

func newResource(ctx context.Context, cfg *Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{attribute.String(resourceServiceNameKey, cfg.ServiceName)}
	for k, v := range cfg.ResourceAttributes {
		if strings.EqualFold(k, resourceServiceNameKey) {
			continue
		}
		attrs = append(attrs, attribute.String(k, v))
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(attrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: resource: %w", err)
	}
	return res, nil
}
