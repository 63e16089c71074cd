// Package telemetry provides OpenTelemetry tracing for skillpack. Finished
// spans are written to the debug log; nothing is sent over the network.
package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/jingkaihe/skillpack/pkg/logger"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// Config represents the configuration for the telemetry system
type Config struct {
	// Enabled determines if tracing is enabled
	Enabled bool
	// ServiceName is the name of the service in traces
	ServiceName string
	// ServiceVersion is the version of the service in traces
	ServiceVersion string
	// SamplerType is the type of sampler to use (always, never, ratio)
	SamplerType string
	// SamplerRatio is the sampling ratio when using ratio sampler
	SamplerRatio float64
}

// InitTracer installs a global tracer provider that logs finished spans.
// Returns a shutdown function to be called before application termination
func InitTracer(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create resource")
	}

	exporter := NewLogExporter(logger.L)
	tracerProvider := trace.NewTracerProvider(
		trace.WithResource(res),
		// spans are exported as they end so short CLI runs lose nothing
		trace.WithSyncer(exporter),
		trace.WithSampler(getSampler(cfg)),
	)
	otel.SetTracerProvider(tracerProvider)

	return func(ctx context.Context) error {
		return errors.Join(tracerProvider.Shutdown(ctx), exporter.Shutdown(ctx))
	}, nil
}

// getSampler returns a sampler based on the provided configuration
func getSampler(cfg Config) trace.Sampler {
	switch cfg.SamplerType {
	case "always":
		return trace.AlwaysSample()
	case "never":
		return trace.NeverSample()
	case "ratio":
		return trace.ParentBased(trace.TraceIDRatioBased(cfg.SamplerRatio))
	default:
		return trace.AlwaysSample()
	}
}

// LogExporter is a span exporter that writes each span as a debug log entry.
type LogExporter struct {
	entry *logrus.Entry
}

var _ trace.SpanExporter = (*LogExporter)(nil)

// NewLogExporter creates a LogExporter writing to entry.
func NewLogExporter(entry *logrus.Entry) *LogExporter {
	return &LogExporter{entry: entry}
}

// ExportSpans implements trace.SpanExporter.
func (e *LogExporter) ExportSpans(_ context.Context, spans []trace.ReadOnlySpan) error {
	for _, span := range spans {
		fields := logrus.Fields{
			"span":     span.Name(),
			"trace_id": span.SpanContext().TraceID().String(),
			"duration": span.EndTime().Sub(span.StartTime()).Round(time.Microsecond).String(),
			"status":   span.Status().Code.String(),
		}
		if span.Parent().IsValid() {
			fields["parent_id"] = span.Parent().SpanID().String()
		}
		for _, attr := range span.Attributes() {
			fields[string(attr.Key)] = attr.Value.Emit()
		}
		entry := e.entry.WithFields(fields)
		if desc := span.Status().Description; desc != "" {
			entry = entry.WithField("error", desc)
		}
		entry.Debug("span finished")
	}
	return nil
}

// Shutdown implements trace.SpanExporter.
func (e *LogExporter) Shutdown(context.Context) error { return nil }
