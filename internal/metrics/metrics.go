package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the engine and router collectors.
	Registry = prometheus.NewRegistry()

	runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "moaflow",
			Subsystem: "engine",
			Name:      "runs_total",
			Help:      "Use case runs by outcome.",
		},
		[]string{"use_case", "status"},
	)

	runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "moaflow",
			Subsystem: "engine",
			Name:      "run_duration_seconds",
			Help:      "Time from Run until every dispatched open completed.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"use_case"},
	)

	statements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "moaflow",
			Subsystem: "engine",
			Name:      "statements_total",
			Help:      "Statements applied, by role.",
		},
		[]string{"kind"},
	)

	recursions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "moaflow",
			Subsystem: "engine",
			Name:      "recursions_total",
			Help:      "Recursive self-invocations of a use case.",
		},
		[]string{"use_case"},
	)

	opens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "moaflow",
			Subsystem: "router",
			Name:      "opens_total",
			Help:      "Module opens dispatched by the router.",
		},
		[]string{"module", "path", "result"},
	)
)

func init() {
	Registry.MustRegister(runs, runDuration, statements, recursions, opens)
}

// Handler returns an HTTP handler exposing the registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordRun records a finished run
func RecordRun(useCase, status string, duration time.Duration) {
	runs.WithLabelValues(useCase, status).Inc()
	runDuration.WithLabelValues(useCase).Observe(duration.Seconds())
}

// RecordStatement counts one applied statement of the given role
func RecordStatement(kind string) {
	statements.WithLabelValues(kind).Inc()
}

// RecordRecursion counts one self-invocation
func RecordRecursion(useCase string) {
	recursions.WithLabelValues(useCase).Inc()
}

// RecordOpen counts one router dispatch; result is "ok" or "error"
func RecordOpen(module, path, result string) {
	opens.WithLabelValues(module, path, result).Inc()
}
