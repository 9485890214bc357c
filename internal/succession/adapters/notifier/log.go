package notifier

import (
	"context"
	"log/slog"

	"heirloom/internal/succession/models"
)

// Log records notifications in the service log when Kafka is not configured.
// The token is never logged.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) SendRelease(ctx context.Context, n models.ReleaseNotification) error {
	l.logger.InfoContext(ctx, "release notification pending delivery",
		"heir_id", n.HeirID.String(),
		"branch_id", n.BranchID.String(),
		"archive_handle", n.ArchiveHandle,
	)
	return nil
}
