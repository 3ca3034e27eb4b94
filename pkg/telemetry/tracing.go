// Package telemetry sets up OpenTelemetry tracing for the binary.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/docker/briefing/pkg/config"
	"github.com/docker/briefing/pkg/version"
)

const serviceName = "briefing"

// TracerProvider owns the exporter pipeline, if any.
type TracerProvider struct {
	trace.TracerProvider
	sdk *sdktrace.TracerProvider
}

// NewTracerProvider returns a no-op provider when tracing is disabled, and
// otherwise a batching OTLP/HTTP provider that is also installed globally.
func NewTracerProvider(ctx context.Context, cfg config.TracingConfig) (*TracerProvider, error) {
	if !cfg.Enabled {
		return &TracerProvider{TracerProvider: noop.NewTracerProvider()}, nil
	}

	var opts []otlptracehttp.Option
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	rate := cfg.SampleRate
	if rate <= 0 {
		rate = 1
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", version.Get().Version),
		)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))),
	)
	otel.SetTracerProvider(provider)

	return &TracerProvider{TracerProvider: provider, sdk: provider}, nil
}

// Shutdown flushes pending spans.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.sdk == nil {
		return nil
	}
	return tp.sdk.Shutdown(ctx)
}
