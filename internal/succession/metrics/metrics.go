package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the succession workflow.
type Metrics struct {
	SuccessorsAdded      prometheus.Counter
	Releases             *prometheus.CounterVec
	NotificationFailures prometheus.Counter
	Downloads            prometheus.Counter
	ArchiveLatency       prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		SuccessorsAdded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "heirloom_successors_added_total",
			Help: "Total number of successors designated",
		}),
		Releases: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "heirloom_releases_total",
			Help: "Release attempts by outcome (released, already_released, failed)",
		}, []string{"outcome"}),
		NotificationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "heirloom_release_notification_failures_total",
			Help: "Releases whose notification hand-off failed",
		}),
		Downloads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "heirloom_archive_downloads_total",
			Help: "Resolved download tokens",
		}),
		ArchiveLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "heirloom_archive_generation_duration_seconds",
			Help:    "Duration of archive generation calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

func (m *Metrics) IncrementSuccessorsAdded() {
	m.SuccessorsAdded.Inc()
}

func (m *Metrics) IncrementRelease(outcome string) {
	m.Releases.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementNotificationFailures() {
	m.NotificationFailures.Inc()
}

func (m *Metrics) IncrementDownloads() {
	m.Downloads.Inc()
}

func (m *Metrics) ObserveArchiveGeneration(start time.Time) {
	m.ArchiveLatency.Observe(time.Since(start).Seconds())
}
