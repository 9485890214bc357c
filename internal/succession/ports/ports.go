// Package ports declares the collaborators the succession workflow calls out
// to. Implementations live in adapters.
package ports

import (
	"context"

	"heirloom/internal/succession/models"
	id "heirloom/pkg/domain"
)

// ArchiveGenerator produces a fresh export of a branch's content.
type ArchiveGenerator interface {
	Generate(ctx context.Context, branchID id.BranchID) (*models.Archive, error)
}

// Notifier delivers the download link to a released heir.
type Notifier interface {
	SendRelease(ctx context.Context, n models.ReleaseNotification) error
}

// BranchReader resolves branch ownership. Returns sentinel.ErrNotFound for an
// unknown branch.
type BranchReader interface {
	BranchOwner(ctx context.Context, branchID id.BranchID) (id.AccountID, error)
}
