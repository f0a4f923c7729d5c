package telemetry

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/okian/podium/pkg/logger"
)

type options struct {
	exporter sdktrace.SpanExporter
	logger   logger.Logger
}

// Option configures Setup.
type Option func(*options)

// WithExporter replaces the OTLP exporter. Setting one enables tracing
// regardless of TracingConfig.Enabled.
func WithExporter(e sdktrace.SpanExporter) Option {
	return func(o *options) {
		if e != nil {
			o.exporter = e
		}
	}
}

// WithLogger overrides the telemetry logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
