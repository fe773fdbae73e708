// Package telemetry wires OpenTelemetry tracing for the skillforge pipeline.
package telemetry

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// DefaultServiceName names spans and the tracer when none is configured.
const DefaultServiceName = "skillforge"

// Config configures tracing.
type Config struct {
	Enabled        bool    `mapstructure:"enabled"`
	ServiceName    string  `mapstructure:"service_name"`
	ServiceVersion string  `mapstructure:"-"`
	SamplerType    string  `mapstructure:"sampler_type" validate:"omitempty,oneof=always never ratio"`
	SamplerRatio   float64 `mapstructure:"sampler_ratio" validate:"gte=0,lte=1"`
}

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

// InitTracer installs a global tracer provider exporting over OTLP/HTTP.
// The exporter endpoint and headers come from the standard
// OTEL_EXPORTER_OTLP_* environment variables. When tracing is disabled the
// returned shutdown is a no-op.
func InitTracer(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = DefaultServiceName
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create resource")
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create trace exporter")
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(
			exporter,
			sdktrace.WithMaxExportBatchSize(512),
			sdktrace.WithBatchTimeout(time.Second),
		)),
		sdktrace.WithSampler(sampler(cfg)),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(ctx context.Context) error {
		var result *multierror.Error
		if err := provider.Shutdown(ctx); err != nil {
			result = multierror.Append(result, err)
		}
		if err := exporter.Shutdown(ctx); err != nil {
			result = multierror.Append(result, err)
		}
		return result.ErrorOrNil()
	}, nil
}

func sampler(cfg Config) sdktrace.Sampler {
	switch cfg.SamplerType {
	case "never":
		return sdktrace.NeverSample()
	case "ratio":
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplerRatio))
	default:
		return sdktrace.AlwaysSample()
	}
}
