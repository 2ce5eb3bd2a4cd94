package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scheduled_task",
		Subsystem: "engine",
		Name:      "executions_total",
		Help:      "Execution log rows written, labelled by status and note.",
	}, []string{"status", "note"})

	BatchRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scheduled_task",
		Subsystem: "engine",
		Name:      "batch_runs_total",
		Help:      "Batch runs, labelled by outcome (completed or aborted).",
	}, []string{"outcome"})

	BatchDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "scheduled_task",
		Subsystem: "engine",
		Name:      "batch_duration_seconds",
		Help:      "Wall time of a batch run.",
		Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	TemplatesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "scheduled_task",
		Subsystem: "engine",
		Name:      "templates_inflight",
		Help:      "Templates currently being evaluated.",
	})
)
