// Package membership is the ledger joining persons to groves and the capacity
// guard that keeps each grove's counted memberships within its plan limit.
package membership

import (
	"log/slog"

	"heirloom/internal/membership/metrics"
	"heirloom/internal/membership/service"
	audit "heirloom/pkg/platform/audit"
	"heirloom/pkg/platform/tx"
)

// Service exposes the membership ledger.
type Service = service.Service

// Stores groups the persistence the ledger needs.
type Stores struct {
	Groves        service.GroveStore
	Memberships   service.MembershipStore
	Subscriptions service.SubscriptionStore
	Persons       service.PersonStore
}

// NewService constructs the ledger with required dependencies.
func NewService(stores Stores, catalog service.PlanCatalog, runner tx.Runner, logger *slog.Logger, publisher audit.Publisher, m *metrics.Metrics) *Service {
	return service.New(stores.Groves, stores.Memberships, stores.Subscriptions, stores.Persons, catalog,
		service.WithTxRunner(runner),
		service.WithLogger(logger),
		service.WithAuditPublisher(publisher),
		service.WithMetrics(m),
	)
}
