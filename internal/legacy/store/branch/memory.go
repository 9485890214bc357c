package branch

import (
	"context"
	"sort"
	"sync"
	"time"

	"heirloom/internal/legacy/models"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
)

const entryActive = "active"

// InMemory stores branches and the status of their content entries. Entries
// are owned by the content service; only their counts matter here.
type InMemory struct {
	mu       sync.RWMutex
	branches map[id.BranchID]*models.Branch
	entries  map[id.BranchID]map[string]string
}

func NewInMemory() *InMemory {
	return &InMemory{
		branches: make(map[id.BranchID]*models.Branch),
		entries:  make(map[id.BranchID]map[string]string),
	}
}

func (s *InMemory) Create(_ context.Context, b *models.Branch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.branches[b.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	clone := *b
	s.branches[b.ID] = &clone
	return nil
}

func (s *InMemory) FindByID(_ context.Context, branchID id.BranchID) (*models.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.branches[branchID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *b
	return &clone, nil
}

// SaveLegacy persists a living -> legacy transition. Returns
// sentinel.ErrInvalidState when the stored branch is already legacy.
func (s *InMemory) SaveLegacy(_ context.Context, b *models.Branch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.branches[b.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Type == models.BranchLegacy {
		return sentinel.ErrInvalidState
	}
	clone := *b
	s.branches[b.ID] = &clone
	return nil
}

// PutEntry records the status of one content entry.
func (s *InMemory) PutEntry(_ context.Context, branchID id.BranchID, entryID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.branches[branchID]; !ok {
		return sentinel.ErrNotFound
	}
	if s.entries[branchID] == nil {
		s.entries[branchID] = make(map[string]string)
	}
	s.entries[branchID][entryID] = status
	return nil
}

// ListEmptyLegacy returns legacy branches created at or before cutoff that
// have no active entries, oldest first.
func (s *InMemory) ListEmptyLegacy(_ context.Context, cutoff time.Time) ([]*models.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Branch
	for branchID, b := range s.branches {
		if !b.IsLegacy() || b.CreatedAt.After(cutoff) {
			continue
		}
		if s.activeEntries(branchID) > 0 {
			continue
		}
		clone := *b
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemory) activeEntries(branchID id.BranchID) int {
	n := 0
	for _, status := range s.entries[branchID] {
		if status == entryActive {
			n++
		}
	}
	return n
}
