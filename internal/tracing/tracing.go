// Package tracing builds the OpenTelemetry tracer provider used by the
// engine and the converter decorator.
//
// A disabled configuration yields a no-op provider, so callers never need
// to branch on whether tracing is on. Spans can be written as JSON lines to
// a file or any io.Writer with the exporter in exporter.go.
package tracing

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"henkan/internal/config"
)

// TracerName is the instrumentation scope of henkan spans.
const TracerName = "henkan"

// Provider owns a TracerProvider and knows how to shut it down.
type Provider struct {
	tp       trace.TracerProvider
	shutdown func(context.Context) error
}

// Option configures NewProvider.
type Option func(*options)

type options struct {
	serviceVersion string
	exporters      []sdktrace.SpanExporter
	syncExporters  []sdktrace.SpanExporter
}

// WithServiceVersion sets the service.version resource attribute.
func WithServiceVersion(v string) Option {
	return func(o *options) { o.serviceVersion = v }
}

// WithExporter adds a batched span exporter.
func WithExporter(exp sdktrace.SpanExporter) Option {
	return func(o *options) { o.exporters = append(o.exporters, exp) }
}

// WithSyncExporter adds an exporter that receives each span as it ends.
// Tests use it with tracetest.InMemoryExporter.
func WithSyncExporter(exp sdktrace.SpanExporter) Option {
	return func(o *options) { o.syncExporters = append(o.syncExporters, exp) }
}

// NewProvider builds a provider from cfg. When tracing is disabled the
// result wraps the no-op provider and Shutdown does nothing.
func NewProvider(cfg config.TracingConfig, opts ...Option) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{
			tp:       noop.NewTracerProvider(),
			shutdown: func(context.Context) error { return nil },
		}, nil
	}
	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		return nil, fmt.Errorf("tracing: sample ratio %v out of range [0, 1]", cfg.SampleRatio)
	}

	o := options{serviceVersion: "dev"}
	for _, opt := range opts {
		opt(&o)
	}

	res, err := sdkresource.Merge(
		sdkresource.Default(),
		sdkresource.NewSchemaless(
			semconv.ServiceName("henkan"),
			semconv.ServiceVersion(o.serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing: build resource: %w", err)
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	}
	for _, exp := range o.exporters {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	}
	for _, exp := range o.syncExporters {
		tpOpts = append(tpOpts, sdktrace.WithSyncer(exp))
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	return &Provider{tp: tp, shutdown: tp.Shutdown}, nil
}

// TracerProvider returns the underlying provider.
func (p *Provider) TracerProvider() trace.TracerProvider {
	return p.tp
}

// Tracer returns the henkan tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.tp.Tracer(TracerName)
}

// Shutdown flushes pending spans and releases exporters.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}

// Trace runs fn inside a span named name. A returned error is recorded on
// the span.
func Trace(ctx context.Context, tracer trace.Tracer, name string, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// LogAttrs returns trace_id and span_id of the span in ctx as slog
// attributes, or nil when ctx carries no valid span.
func LogAttrs(ctx context.Context) []slog.Attr {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return []slog.Attr{
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	}
}
