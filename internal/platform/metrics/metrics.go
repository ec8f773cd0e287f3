package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	TasksProcessed     *prometheus.CounterVec
	TasksBypassed      prometheus.Counter
	TasksFailed        prometheus.Counter
	ProcessingDuration prometheus.Histogram
	AdvisorCalls       *prometheus.CounterVec
	RateLimited        prometheus.Counter
	DeadLetters        prometheus.Counter
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers on a caller-provided registry; tests use this to avoid
// duplicate registration across cases.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TasksProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "prioritizer_tasks_processed_total",
			Help: "Tasks fully processed, by resulting urgency level",
		}, []string{"urgency_level"}),
		TasksBypassed: factory.NewCounter(prometheus.CounterOpts{
			Name: "prioritizer_tasks_bypassed_total",
			Help: "Tasks routed to local-only processing by the privacy gate",
		}),
		TasksFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "prioritizer_tasks_failed_total",
			Help: "Tasks that fell back to the safe default result",
		}),
		ProcessingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prioritizer_processing_duration_seconds",
			Help:    "End-to-end prioritization latency",
			Buckets: prometheus.DefBuckets,
		}),
		AdvisorCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "prioritizer_advisor_calls_total",
			Help: "External advisor calls, by outcome",
		}, []string{"outcome"}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "prioritizer_rate_limited_total",
			Help: "Requests rejected by the sliding-window rate limiter",
		}),
		DeadLetters: factory.NewCounter(prometheus.CounterOpts{
			Name: "prioritizer_dead_letters_total",
			Help: "Envelopes dead-lettered after exhausting retries",
		}),
	}
}

func (m *Metrics) ObserveProcessed(urgency string, seconds float64) {
	m.TasksProcessed.WithLabelValues(urgency).Inc()
	m.ProcessingDuration.Observe(seconds)
}

func (m *Metrics) ObserveAdvisorCall(outcome string) {
	m.AdvisorCalls.WithLabelValues(outcome).Inc()
}
