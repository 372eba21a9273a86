// Package observability provides tracing and operation-scoped logging for
// chunkbench. Spans are exported as JSON lines through the OpenTelemetry
// stdout exporter when a trace file is configured; otherwise a no-op provider
// keeps the instrumentation free.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracingConfig contains tracing configuration
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	SamplingRate   float64

	// OutputPath receives the exported spans. Empty disables export unless
	// Writer is set.
	OutputPath string
	// Writer overrides OutputPath.
	Writer io.Writer
}

// DefaultTracingConfig returns a disabled, always-sampling configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName:    "chunkbench",
		ServiceVersion: "dev",
		SamplingRate:   1.0,
	}
}

// Tracing owns the tracer provider for one run.
type Tracing struct {
	provider trace.TracerProvider
	sdk      *sdktrace.TracerProvider
	file     *os.File
	tracer   trace.Tracer
}

// InitTracing sets up tracing and installs the provider globally.
func InitTracing(ctx context.Context, config TracingConfig) (*Tracing, error) {
	if config.ServiceName == "" {
		config.ServiceName = "chunkbench"
	}

	w := config.Writer
	var file *os.File
	if w == nil && config.OutputPath != "" {
		f, err := os.Create(config.OutputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace file: %w", err)
		}
		file, w = f, f
	}

	if w == nil {
		provider := noop.NewTracerProvider()
		otel.SetTracerProvider(provider)
		return &Tracing{provider: provider, tracer: provider.Tracer(config.ServiceName)}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
		),
	)
	if err != nil {
		closeQuietly(file)
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		closeQuietly(file)
		return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	// Configure sampling
	var sampler sdktrace.Sampler
	if config.SamplingRate <= 0 {
		sampler = sdktrace.NeverSample()
	} else if config.SamplingRate >= 1.0 {
		sampler = sdktrace.AlwaysSample()
	} else {
		sampler = sdktrace.TraceIDRatioBased(config.SamplingRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)

	return &Tracing{
		provider: tp,
		sdk:      tp,
		file:     file,
		tracer:   tp.Tracer(config.ServiceName),
	}, nil
}

// Tracer returns the run's tracer.
func (t *Tracing) Tracer() trace.Tracer {
	return t.tracer
}

// Enabled reports whether spans are exported.
func (t *Tracing) Enabled() bool {
	return t.sdk != nil
}

// Shutdown flushes pending spans and closes the trace file.
func (t *Tracing) Shutdown(ctx context.Context) error {
	var errs []error
	if t.sdk != nil {
		if err := t.sdk.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown tracer: %w", err))
		}
	}
	if t.file != nil {
		if err := t.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close trace file: %w", err))
		}
		t.file = nil
	}
	return errors.Join(errs...)
}

func closeQuietly(f *os.File) {
	if f != nil {
		_ = f.Close()
	}
}

// Span wraps a trace span and batches its attributes until End.
type Span struct {
	span       trace.Span
	attributes []attribute.KeyValue
}

// StartSpan starts a span named operationName. A nil tracer uses the global
// provider.
func StartSpan(ctx context.Context, tracer trace.Tracer, operationName string) (context.Context, *Span) {
	if tracer == nil {
		tracer = otel.Tracer("chunkbench")
	}
	ctx, span := tracer.Start(ctx, operationName)
	return ctx, &Span{span: span}
}

// SetAttribute adds an attribute to the span (batched for performance)
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case uint64:
		attr = attribute.Int64(key, int64(v))
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// AddEvent adds an event to the span
func (s *Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Finish records err on the span, if any, and ends it.
func (s *Span) Finish(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
		s.SetAttribute("error", true)
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.End()
}

// End ends the span
func (s *Span) End() {
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}
	s.span.End()
}
