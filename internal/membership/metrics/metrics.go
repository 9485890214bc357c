package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the membership ledger and capacity guard.
type Metrics struct {
	MembershipsAdded   *prometheus.CounterVec
	MembershipsRemoved prometheus.Counter
	CapacityRejections prometheus.Counter
	TreeCountDrift     prometheus.Counter
	TreeCountSyncs     prometheus.Counter
}

// New creates a new Metrics instance with all membership metrics registered.
func New() *Metrics {
	return &Metrics{
		MembershipsAdded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "heirloom_memberships_added_total",
			Help: "Total number of memberships added, by kind (original, adopted, rooted)",
		}, []string{"kind"}),
		MembershipsRemoved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "heirloom_memberships_removed_total",
			Help: "Total number of memberships removed",
		}),
		CapacityRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "heirloom_capacity_rejections_total",
			Help: "Total number of writes refused because the grove was full",
		}),
		TreeCountDrift: promauto.NewCounter(prometheus.CounterOpts{
			Name: "heirloom_tree_count_drift_total",
			Help: "Total number of counter updates that failed after the membership write succeeded",
		}),
		TreeCountSyncs: promauto.NewCounter(prometheus.CounterOpts{
			Name: "heirloom_tree_count_syncs_total",
			Help: "Total number of tree count reconciliations",
		}),
	}
}

func (m *Metrics) IncrementMembershipsAdded(kind string) {
	m.MembershipsAdded.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementMembershipsRemoved() {
	m.MembershipsRemoved.Inc()
}

func (m *Metrics) IncrementCapacityRejections() {
	m.CapacityRejections.Inc()
}

func (m *Metrics) IncrementTreeCountDrift() {
	m.TreeCountDrift.Inc()
}

func (m *Metrics) IncrementTreeCountSyncs() {
	m.TreeCountSyncs.Inc()
}
