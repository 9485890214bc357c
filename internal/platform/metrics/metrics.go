package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds process-wide Prometheus metrics that do not belong to a
// single domain module.
type Metrics struct {
	HTTPRequests   *prometheus.CounterVec
	JobRuns        *prometheus.CounterVec
	JobDuration    *prometheus.HistogramVec
	OutboxRelayed  prometheus.Counter
	OutboxFailures prometheus.Counter
}

// New creates and registers all platform metrics
func New() *Metrics {
	return &Metrics{
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "heirloom_http_requests_total",
			Help: "HTTP requests served by the ops surface",
		}, []string{"method", "status"}),
		JobRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "heirloom_job_runs_total",
			Help: "Scheduled job executions by outcome (ok, error, skipped)",
		}, []string{"job", "outcome"}),
		JobDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "heirloom_job_duration_seconds",
			Help:    "Duration of scheduled job executions",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		OutboxRelayed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "heirloom_outbox_relayed_total",
			Help: "Outbox rows published to Kafka",
		}),
		OutboxFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "heirloom_outbox_publish_failures_total",
			Help: "Outbox relay batches that failed to publish",
		}),
	}
}

func (m *Metrics) IncHTTPRequest(method, status string) {
	m.HTTPRequests.WithLabelValues(method, status).Inc()
}

func (m *Metrics) ObserveJob(job, outcome string, seconds float64) {
	m.JobRuns.WithLabelValues(job, outcome).Inc()
	m.JobDuration.WithLabelValues(job).Observe(seconds)
}

func (m *Metrics) AddOutboxRelayed(n int) {
	m.OutboxRelayed.Add(float64(n))
}

func (m *Metrics) IncOutboxFailures() {
	m.OutboxFailures.Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
