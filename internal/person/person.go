// Package person is the registry of canonical person identities. A Person is
// created once and may belong to many groves through the membership ledger.
package person

import (
	"log/slog"

	"heirloom/internal/person/metrics"
	"heirloom/internal/person/service"
	audit "heirloom/pkg/platform/audit"
	"heirloom/pkg/platform/tx"
)

// Service exposes the person registry.
type Service = service.Service

// NewService constructs the registry with required dependencies.
func NewService(persons service.PersonStore, accounts service.AccountStore, memberships service.MembershipReader, runner tx.Runner, logger *slog.Logger, publisher audit.Publisher, m *metrics.Metrics) *Service {
	return service.New(persons, accounts, memberships,
		service.WithTxRunner(runner),
		service.WithLogger(logger),
		service.WithAuditPublisher(publisher),
		service.WithMetrics(m),
	)
}
