package manager

import (
	"context"
	"sort"
	"sync"

	"heirloom/internal/legacy/models"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
)

type pairKey struct {
	branch id.BranchID
	user   id.AccountID
}

// InMemory enforces one role record per (branch, user).
type InMemory struct {
	mu       sync.RWMutex
	managers map[pairKey]*models.LegacyManager
}

func NewInMemory() *InMemory {
	return &InMemory{managers: make(map[pairKey]*models.LegacyManager)}
}

func (s *InMemory) Create(_ context.Context, m *models.LegacyManager) error {
	key := pairKey{m.BranchID, m.UserID}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.managers[key]; exists {
		return sentinel.ErrAlreadyUsed
	}
	clone := *m
	s.managers[key] = &clone
	return nil
}

func (s *InMemory) ListByBranch(_ context.Context, branchID id.BranchID) ([]*models.LegacyManager, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.LegacyManager, 0)
	for key, m := range s.managers {
		if key.branch == branchID {
			clone := *m
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemory) Exists(_ context.Context, userID id.AccountID, branchID id.BranchID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.managers[pairKey{branchID, userID}]
	return ok, nil
}
