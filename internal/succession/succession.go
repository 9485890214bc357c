// Package succession designates heirs for a branch and releases the branch
// archive to them once their condition is met.
package succession

import (
	"log/slog"

	"heirloom/internal/succession/metrics"
	"heirloom/internal/succession/ports"
	"heirloom/internal/succession/service"
	audit "heirloom/pkg/platform/audit"
	"heirloom/pkg/platform/tx"
)

type Service = service.Service

// Deps groups the collaborators Release and ResolveDownload call out to.
type Deps struct {
	Heirs    service.HeirStore
	Branches ports.BranchReader
	Archives ports.ArchiveGenerator
	Notifier ports.Notifier
}

func NewService(deps Deps, runner tx.Runner, demoMode bool, logger *slog.Logger, publisher audit.Publisher, m *metrics.Metrics) (*Service, error) {
	return service.New(deps.Heirs, deps.Branches, deps.Archives, deps.Notifier,
		service.WithTxRunner(runner),
		service.WithDemoMode(demoMode),
		service.WithLogger(logger),
		service.WithAuditPublisher(publisher),
		service.WithMetrics(m),
	)
}
