// Package telemetry configures OpenTelemetry tracing for the seclai CLI.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Shutdown flushes and stops the tracer provider.
type Shutdown func(ctx context.Context) error

// Options selects the exporter.
type Options struct {
	// Endpoint is the OTLP/HTTP collector host:port. Empty disables export.
	Endpoint string
	Insecure bool

	ServiceName string
	Version     string
}

// Init installs a global tracer provider exporting to opts.Endpoint and the
// W3C trace-context and baggage propagators. With no endpoint it installs
// nothing and returns a no-op provider.
func Init(ctx context.Context, opts Options) (trace.TracerProvider, Shutdown, error) {
	if opts.Endpoint == "" {
		return noop.NewTracerProvider(), func(context.Context) error { return nil }, nil
	}

	traceOpts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(opts.Endpoint),
	}
	if opts.Insecure {
		traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
	}
	exp, err := otlptracehttp.New(ctx, traceOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: create trace exporter: %w", err)
	}

	tp, err := newProvider(ctx, exp, opts)
	if err != nil {
		_ = exp.Shutdown(ctx)
		return nil, nil, err
	}
	install(tp)
	return tp, tp.Shutdown, nil
}

func newProvider(ctx context.Context, exp sdktrace.SpanExporter, opts Options) (*sdktrace.TracerProvider, error) {
	name := opts.ServiceName
	if name == "" {
		name = "seclai"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(name),
			semconv.ServiceVersionKey.String(opts.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create resource: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	), nil
}

func install(tp trace.TracerProvider) {
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)
}
