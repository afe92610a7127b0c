package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlagent_turns_total",
			Help: "Total number of chat turns by outcome.",
		},
		[]string{"outcome"},
	)
	turnDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlagent_turn_duration_seconds",
			Help:    "End-to-end chat turn latency by outcome.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"outcome"},
	)
	safetyRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlagent_safety_rejections_total",
			Help: "Total number of statements rejected by the read-only safety gate.",
		},
	)
	queryDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlagent_query_duration_seconds",
			Help:    "Database execution latency for accepted statements.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "status"},
	)
	modelCallDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlagent_model_call_duration_seconds",
			Help:    "Language model call latency by pipeline stage.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"stage", "status"},
	)
	queryLogWriteFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlagent_querylog_write_failures_total",
			Help: "Total number of query log writes that failed.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		turnsTotal,
		turnDurationSeconds,
		safetyRejectionsTotal,
		queryDurationSeconds,
		modelCallDurationSeconds,
		queryLogWriteFailuresTotal,
	)
}

func ObserveTurn(outcome string, elapsed time.Duration) {
	turnsTotal.WithLabelValues(outcome).Inc()
	turnDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func IncrementSafetyRejection() {
	safetyRejectionsTotal.Inc()
}

func ObserveQuery(backend string, err error, elapsed time.Duration) {
	queryDurationSeconds.WithLabelValues(backend, statusLabel(err)).Observe(elapsed.Seconds())
}

func ObserveModelCall(stage string, err error, elapsed time.Duration) {
	modelCallDurationSeconds.WithLabelValues(stage, statusLabel(err)).Observe(elapsed.Seconds())
}

func IncrementQueryLogWriteFailure() {
	queryLogWriteFailuresTotal.Inc()
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
