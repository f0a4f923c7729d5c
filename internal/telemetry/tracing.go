// Package telemetry installs the process-wide OpenTelemetry tracer provider
// that refresh spans are exported through.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/okian/podium/pkg/logger"
)

// TracingConfig selects whether and where spans are exported.
type TracingConfig struct {
	// Enabled turns span export on. When off the global no-op provider is
	// left in place.
	Enabled bool `koanf:"enabled"`

	// Endpoint is the OTLP/gRPC collector address (host:port).
	Endpoint string `koanf:"endpoint" validate:"required_if=Enabled true"`

	// Insecure disables TLS to the collector.
	Insecure bool `koanf:"insecure"`

	// SampleRatio is the fraction of root spans kept.
	SampleRatio float64 `koanf:"sample_ratio" validate:"gte=0,lte=1"`

	ServiceName string `koanf:"service_name"`
}

// DefaultTracingConfig returns tracing disabled, sampling everything once
// enabled.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		Endpoint:    "localhost:4317",
		Insecure:    true,
		SampleRatio: 1,
		ServiceName: "podium",
	}
}

// ShutdownFunc flushes buffered spans and releases the exporter.
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(context.Context) error { return nil }

// Setup installs a batching tracer provider as the global provider. The
// returned ShutdownFunc must be called before exit so buffered spans are
// flushed.
func Setup(ctx context.Context, cfg TracingConfig, opts ...Option) (ShutdownFunc, error) {
	o := options{logger: logger.Get().Named("telemetry")}
	for _, opt := range opts {
		opt(&o)
	}
	if !cfg.Enabled && o.exporter == nil {
		return noopShutdown, nil
	}

	exporter := o.exporter
	if exporter == nil {
		clientOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			clientOpts = append(clientOpts, otlptracegrpc.WithInsecure())
		}
		exp, err := otlptracegrpc.New(ctx, clientOpts...)
		if err != nil {
			return noopShutdown, fmt.Errorf("create otlp exporter: %w", err)
		}
		exporter = exp
	}

	name := cfg.ServiceName
	if name == "" {
		name = DefaultTracingConfig().ServiceName
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", name))),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tp)

	o.logger.Info(ctx, "tracing enabled",
		logger.String("endpoint", cfg.Endpoint),
		logger.String("service", name),
	)
	return tp.Shutdown, nil
}
