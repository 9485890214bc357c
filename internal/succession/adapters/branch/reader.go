package branch

import (
	"context"

	"heirloom/internal/legacy/models"
	id "heirloom/pkg/domain"
)

// Finder is the slice of the legacy branch store needed to resolve owners.
type Finder interface {
	FindByID(ctx context.Context, branchID id.BranchID) (*models.Branch, error)
}

// Reader adapts the branch store to the succession BranchReader port.
type Reader struct {
	branches Finder
}

func NewReader(branches Finder) *Reader {
	return &Reader{branches: branches}
}

// BranchOwner passes sentinel.ErrNotFound through unchanged.
func (r *Reader) BranchOwner(ctx context.Context, branchID id.BranchID) (id.AccountID, error) {
	b, err := r.branches.FindByID(ctx, branchID)
	if err != nil {
		return id.AccountID{}, err
	}
	return b.OwnerID, nil
}
