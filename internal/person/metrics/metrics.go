package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the person registry.
type Metrics struct {
	PersonsCreated   prometheus.Counter
	EnrichedReadTime prometheus.Histogram
}

// New creates a new Metrics instance with all person registry metrics registered.
func New() *Metrics {
	return &Metrics{
		PersonsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "heirloom_persons_created_total",
			Help: "Total number of persons created",
		}),
		EnrichedReadTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "heirloom_person_enriched_read_duration_seconds",
			Help:    "Duration of registry reads including membership enrichment",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementPersonsCreated() {
	m.PersonsCreated.Inc()
}

// ObserveEnrichedRead records the duration of an enriched read.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveEnrichedRead(start time.Time) {
	m.EnrichedReadTime.Observe(time.Since(start).Seconds())
}
