package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fanwiki",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fanwiki",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"method", "route"},
	)

	// UploadsTotal counts finished CREATE/EDIT/DELETE operations by kind and result.
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fanwiki",
			Subsystem: "uploads",
			Name:      "total",
			Help:      "Total post uploads, edits and deletions",
		},
		[]string{"kind", "operation", "result"},
	)

	PromotedBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fanwiki",
			Subsystem: "uploads",
			Name:      "promoted_bytes_total",
			Help:      "Bytes written to permanent storage after compression",
		},
		[]string{"kind"},
	)

	JobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fanwiki",
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Scheduled job executions",
		},
		[]string{"job", "result"},
	)

	ReapedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fanwiki",
			Subsystem: "scheduler",
			Name:      "reaped_total",
			Help:      "Entries removed by the reaper",
		},
		[]string{"what"},
	)
)

func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
