package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const (
	TraceExporterNone   = ""
	TraceExporterStdout = "stdout"
)

var ErrUnknownExporter = errors.New("unknown trace exporter")

// NewTracer builds a tracer for the named exporter. The returned shutdown
// flushes pending spans. TraceExporterNone returns a nil tracer and a no-op
// shutdown.
func NewTracer(exporter string, w io.Writer) (trace.Tracer, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	var spanExporter sdktrace.SpanExporter
	switch exporter {
	case TraceExporterNone:
		return nil, noop, nil
	case TraceExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, noop, fmt.Errorf("create exporter: %w", err)
		}
		spanExporter = exp
	default:
		return nil, noop, fmt.Errorf("%w: %s", ErrUnknownExporter, exporter)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	return tp.Tracer(tracerName), tp.Shutdown, nil
}
