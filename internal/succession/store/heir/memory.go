package heir

import (
	"context"
	"sort"
	"sync"
	"time"

	"heirloom/internal/succession/models"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
)

// InMemory keeps heirs indexed by id and download token.
type InMemory struct {
	mu      sync.RWMutex
	heirs   map[id.HeirID]*models.Heir
	byToken map[string]id.HeirID
}

func NewInMemory() *InMemory {
	return &InMemory{
		heirs:   make(map[id.HeirID]*models.Heir),
		byToken: make(map[string]id.HeirID),
	}
}

func (s *InMemory) Create(_ context.Context, h *models.Heir) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.heirs[h.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	if _, exists := s.byToken[h.DownloadToken]; exists {
		return sentinel.ErrAlreadyUsed
	}
	clone := *h
	s.heirs[h.ID] = &clone
	s.byToken[h.DownloadToken] = h.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, heirID id.HeirID) (*models.Heir, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.heirs[heirID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *h
	return &clone, nil
}

func (s *InMemory) FindByToken(_ context.Context, token string) (*models.Heir, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	heirID, ok := s.byToken[token]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *s.heirs[heirID]
	return &clone, nil
}

func (s *InMemory) ListByBranch(_ context.Context, branchID id.BranchID) ([]*models.Heir, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Heir
	for _, h := range s.heirs {
		if h.BranchID == branchID {
			clone := *h
			out = append(out, &clone)
		}
	}
	sortByCreation(out)
	return out, nil
}

// ListDue returns pending AFTER_DATE heirs whose release date is at or before now.
func (s *InMemory) ListDue(_ context.Context, now time.Time) ([]*models.Heir, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Heir
	for _, h := range s.heirs {
		if h.IsDue(now) {
			clone := *h
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReleaseDate.Equal(*out[j].ReleaseDate) {
			return out[i].ReleaseDate.Before(*out[j].ReleaseDate)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// MarkReleased flips notified false -> true. Returns sentinel.ErrInvalidState
// when the heir was already released.
func (s *InMemory) MarkReleased(_ context.Context, heirID id.HeirID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.heirs[heirID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if err := h.MarkReleased(at); err != nil {
		return sentinel.ErrInvalidState
	}
	return nil
}

func sortByCreation(list []*models.Heir) {
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
}
