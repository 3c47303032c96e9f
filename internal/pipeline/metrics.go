package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gw",
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Completed pipeline runs by run-level status.",
	}, []string{"status"})

	categoryOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gw",
		Subsystem: "pipeline",
		Name:      "category_outcomes_total",
		Help:      "Per-category outcomes of pipeline runs.",
	}, []string{"category", "status"})

	recordsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gw",
		Subsystem: "pipeline",
		Name:      "records_written_total",
		Help:      "Snapshot rows committed to storage.",
	}, []string{"category"})

	fetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gw",
		Subsystem: "pipeline",
		Name:      "fetch_failures_total",
		Help:      "Category fetches that exhausted all retries.",
	}, []string{"category"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gw",
		Subsystem: "pipeline",
		Name:      "run_duration_seconds",
		Help:      "Wall time of a full pipeline run.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})
)
