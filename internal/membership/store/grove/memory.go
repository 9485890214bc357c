package grove

import (
	"context"
	"sort"
	"sync"

	"heirloom/internal/membership/models"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
)

// InMemory stores groves behind a single mutex so the conditional counter
// updates are atomic.
type InMemory struct {
	mu     sync.RWMutex
	groves map[id.GroveID]*models.Grove
}

func NewInMemory() *InMemory {
	return &InMemory{groves: make(map[id.GroveID]*models.Grove)}
}

// Create registers a grove. Groves are provisioned by account lifecycle; this
// exists for seeding and tests.
func (s *InMemory) Create(_ context.Context, g *models.Grove) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.groves[g.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	clone := *g
	s.groves[g.ID] = &clone
	return nil
}

func (s *InMemory) FindByID(_ context.Context, groveID id.GroveID) (*models.Grove, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groves[groveID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *g
	return &clone, nil
}

// FindByIDForUpdate is FindByID; callers already hold the unit-of-work lock.
func (s *InMemory) FindByIDForUpdate(ctx context.Context, groveID id.GroveID) (*models.Grove, error) {
	return s.FindByID(ctx, groveID)
}

func (s *InMemory) FindByIDs(_ context.Context, ids []id.GroveID) (map[id.GroveID]*models.Grove, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[id.GroveID]*models.Grove, len(ids))
	for _, groveID := range ids {
		if g, ok := s.groves[groveID]; ok {
			clone := *g
			out[groveID] = &clone
		}
	}
	return out, nil
}

func (s *InMemory) ListIDs(_ context.Context) ([]id.GroveID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]id.GroveID, 0, len(s.groves))
	for groveID := range s.groves {
		ids = append(ids, groveID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

// IncrementIfBelowLimit adds one to the counter only while it is below the
// limit. Returns sentinel.ErrLimitReached when full.
func (s *InMemory) IncrementIfBelowLimit(_ context.Context, groveID id.GroveID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groves[groveID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if g.TreeCount >= g.TreeLimit {
		return sentinel.ErrLimitReached
	}
	g.TreeCount++
	return nil
}

// DecrementFloor subtracts one from the counter, stopping at zero.
func (s *InMemory) DecrementFloor(_ context.Context, groveID id.GroveID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groves[groveID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if g.TreeCount > 0 {
		g.TreeCount--
	}
	return nil
}

func (s *InMemory) SetTreeCount(_ context.Context, groveID id.GroveID, count int) error {
	if count < 0 {
		return sentinel.ErrInvalidState
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groves[groveID]
	if !ok {
		return sentinel.ErrNotFound
	}
	g.TreeCount = count
	return nil
}
