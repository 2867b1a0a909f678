// Package telemetry configures OpenTelemetry tracing for a run.
//
// Tracing is off unless enabled in configuration; until Init is called the
// global tracer provider is the otel no-op, so spans started by the
// scheduler cost nothing.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// ServiceName identifies ratco in exported resources.
const ServiceName = "ratco"

// Exporter names accepted by Config.Exporter.
const (
	ExporterStdout = "stdout"
	ExporterFile   = "file"
	ExporterNone   = "none"
)

// ShutdownFunc flushes and releases telemetry resources.
type ShutdownFunc func(context.Context) error

// Config controls telemetry exporter behavior.
type Config struct {
	Enabled  bool
	Exporter string
	// Path is the trace output file for the file exporter.
	Path string
	// Writer overrides the exporter destination. Used by tests.
	Writer io.Writer
}

// Init installs a global tracer provider according to cfg. When tracing is
// disabled it installs nothing and returns a no-op shutdown.
func Init(version string, cfg Config) (ShutdownFunc, error) {
	noop := func(context.Context) error { return nil }
	exporter := strings.ToLower(strings.TrimSpace(cfg.Exporter))
	if !cfg.Enabled || exporter == ExporterNone {
		return noop, nil
	}

	var closer io.Closer
	w := cfg.Writer
	if w == nil {
		switch exporter {
		case "", ExporterStdout:
			w = os.Stdout
		case ExporterFile:
			if cfg.Path == "" {
				return nil, fmt.Errorf("file exporter requires a path")
			}
			f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
			if err != nil {
				return nil, fmt.Errorf("failed to open trace file: %w", err)
			}
			w, closer = f, f
		default:
			return nil, fmt.Errorf("unknown telemetry exporter: %s", cfg.Exporter)
		}
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		// Schema conflicts between the default resource and semconv are not
		// fatal; fall back to the bare attributes.
		res = resource.NewSchemaless(semconv.ServiceName(ServiceName), semconv.ServiceVersion(version))
	}

	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter, sdktrace.WithBatchTimeout(time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(ctx context.Context) error {
		var errs []error
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		if closer != nil {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if len(errs) > 0 {
			return fmt.Errorf("telemetry shutdown errors: %v", errs)
		}
		return nil
	}, nil
}

// Tracer returns a named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
