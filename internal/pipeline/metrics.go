package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	runs     metric.Int64Counter
	failures metric.Int64Counter
	duration metric.Float64Histogram
}

func newMetrics() *metrics {
	meter := otel.Meter("scribe.pipeline")
	runs, _ := meter.Int64Counter("scribe_pipeline_runs_total",
		metric.WithDescription("Completed pipeline runs by outcome"))
	failures, _ := meter.Int64Counter("scribe_pipeline_failures_total",
		metric.WithDescription("Failed pipeline runs by kind"))
	duration, _ := meter.Float64Histogram("scribe_pipeline_duration_seconds",
		metric.WithDescription("End-to-end pipeline run duration"))
	return &metrics{runs: runs, failures: failures, duration: duration}
}

func (m *metrics) recordSuccess(ctx context.Context, translated bool, elapsed time.Duration) {
	m.runs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", "success"),
		attribute.Bool("translated", translated),
	))
	m.duration.Record(ctx, elapsed.Seconds())
}

func (m *metrics) recordFailure(ctx context.Context, kind Kind, elapsed time.Duration) {
	m.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "failure")))
	m.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
	m.duration.Record(ctx, elapsed.Seconds())
}
