// Package telemetry configures the OpenTelemetry tracer provider.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/mattjoyce/synapse-gw/internal/config"
)

// TracerName is the instrumentation scope used by gateway spans.
const TracerName = "github.com/mattjoyce/synapse-gw"

// Exporters.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
)

// Shutdown flushes and stops the provider.
type Shutdown func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// Setup installs a global tracer provider per cfg. When tracing is disabled
// the global no-op provider is left in place. w receives stdout spans; nil
// means os.Stdout.
func Setup(ctx context.Context, serviceName string, cfg config.TelemetryConfig, w io.Writer) (Shutdown, error) {
	if !cfg.Enabled || cfg.Exporter == "" || cfg.Exporter == ExporterNone {
		return noopShutdown, nil
	}
	if w == nil {
		w = os.Stdout
	}

	var exp sdktrace.SpanExporter
	switch cfg.Exporter {
	case ExporterStdout:
		opts := []stdouttrace.Option{stdouttrace.WithWriter(w)}
		if cfg.Pretty {
			opts = append(opts, stdouttrace.WithPrettyPrint())
		}
		e, err := stdouttrace.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("trace exporter init: %w", err)
		}
		exp = e
	default:
		return nil, fmt.Errorf("unsupported exporter: %s", cfg.Exporter)
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("resource init: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	}, nil
}

// Tracer returns the gateway tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}
