// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ResitEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resit_events_total",
			Help: "Total number of resit workflow events",
		},
		[]string{"event_type"},
	)

	AttemptsRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attempts_recorded_total",
			Help: "Total number of graded attempts appended to the ledger",
		},
		[]string{"kind"},
	)

	FinalGradeHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "final_grade",
			Help:    "Distribution of final grades",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)

	JournalWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "journal_write_failures_total",
			Help: "Total number of journal rows that failed to persist",
		},
	)
)
