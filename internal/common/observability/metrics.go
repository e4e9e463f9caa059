package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability owns the OpenTelemetry meter provider exported through the
// process /metrics endpoint. Handlers keep their own outcome counters; the
// instruments here measure the job transport one level below them.
type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	jobsHandled   otelmetric.Int64Counter
	jobDuration   otelmetric.Float64Histogram
}

// New installs a Prometheus-exporting meter provider as the global
// OpenTelemetry provider. A failed exporter leaves a no-op instance.
func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	jobsHandled, _ := meter.Int64Counter(
		"workflow.jobs.handled",
		otelmetric.WithDescription("Jobs delivered to a handler, by task type"),
	)

	jobDuration, _ := meter.Float64Histogram(
		"workflow.jobs.duration",
		otelmetric.WithDescription("Wall time a handler held a job"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		jobsHandled:   jobsHandled,
		jobDuration:   jobDuration,
	}
}

// RecordJobHandled counts one delivered job and the wall time its handler
// held it, regardless of outcome.
func (o *Observability) RecordJobHandled(ctx context.Context, taskType string, duration time.Duration) {
	attrs := otelmetric.WithAttributes(attribute.String("task.type", taskType))
	if o.jobsHandled != nil {
		o.jobsHandled.Add(ctx, 1, attrs)
	}
	if o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}
