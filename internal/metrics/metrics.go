package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Prometheus metrics
var (
	Transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dump_transitions_total",
			Help: "Document status transitions by source and target status",
		},
		[]string{"from", "to"},
	)
	StageAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dump_stage_attempts_total",
			Help: "Pipeline stage attempts by stage and outcome",
		},
		[]string{"stage", "outcome"},
	)
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dump_stage_duration_seconds",
			Help:    "Duration of pipeline stage attempts in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14), // 50ms to ~7m
		},
		[]string{"stage"},
	)
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dump_queue_depth",
			Help: "Documents waiting in the in-process pipeline queue",
		},
	)
	Uploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dump_uploads_total",
			Help: "Upload requests by outcome",
		},
		[]string{"outcome"},
	)
	Searches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dump_searches_total",
			Help: "Executed (non-empty) search queries",
		},
	)
)

var tracer = otel.Tracer("thedump/pipeline")

func init() {
	prometheus.MustRegister(Transitions, StageAttempts, StageDuration, QueueDepth, Uploads, Searches)
}

// StartSpan opens a span for one pipeline stage of one document.
func StartSpan(ctx context.Context, stage, documentID string, attempt int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "dump."+stage, trace.WithAttributes(
		attribute.String("dump.document.id", documentID),
		attribute.String("dump.stage", stage),
		attribute.Int("dump.attempt", attempt),
	))
}
