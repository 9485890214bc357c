package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the legacy branch lifecycle.
type Metrics struct {
	BranchesMarkedLegacy prometheus.Counter
	LegacyManagersAdded  *prometheus.CounterVec
	EmptyLegacyBranches  prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		BranchesMarkedLegacy: promauto.NewCounter(prometheus.CounterOpts{
			Name: "heirloom_branches_marked_legacy_total",
			Help: "Total number of branches transitioned to legacy",
		}),
		LegacyManagersAdded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "heirloom_legacy_managers_added_total",
			Help: "Legacy manager role records created, by role",
		}, []string{"role"}),
		EmptyLegacyBranches: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "heirloom_empty_legacy_branches",
			Help: "Legacy branches without active entries found by the last report",
		}),
	}
}

func (m *Metrics) IncrementBranchesMarkedLegacy() {
	m.BranchesMarkedLegacy.Inc()
}

func (m *Metrics) IncrementLegacyManagersAdded(role string) {
	m.LegacyManagersAdded.WithLabelValues(role).Inc()
}

func (m *Metrics) SetEmptyLegacyBranches(n int) {
	m.EmptyLegacyBranches.Set(float64(n))
}
