// Package legacy moves branches into their read-only memorial state and
// manages who may steward them afterwards.
package legacy

import (
	"log/slog"

	"heirloom/internal/legacy/metrics"
	"heirloom/internal/legacy/service"
	audit "heirloom/pkg/platform/audit"
	"heirloom/pkg/platform/tx"
)

type Service = service.Service

func NewService(branches service.BranchStore, managers service.ManagerStore, runner tx.Runner, logger *slog.Logger, publisher audit.Publisher, m *metrics.Metrics) *Service {
	return service.New(branches, managers,
		service.WithTxRunner(runner),
		service.WithLogger(logger),
		service.WithAuditPublisher(publisher),
		service.WithMetrics(m),
	)
}
