package account

import (
	"context"
	"sync"

	"heirloom/internal/person/models"
	id "heirloom/pkg/domain"
	"heirloom/pkg/email"
	"heirloom/pkg/platform/sentinel"
)

// InMemory holds accounts keyed by id with a normalized-email index.
type InMemory struct {
	mu      sync.RWMutex
	byID    map[id.AccountID]*models.Account
	byEmail map[string]id.AccountID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:    make(map[id.AccountID]*models.Account),
		byEmail: make(map[string]id.AccountID),
	}
}

// Create registers an account. Accounts are owned by the identity system;
// this exists for seeding and tests.
func (s *InMemory) Create(_ context.Context, a *models.Account) error {
	key := email.Normalize(a.Email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byEmail[key]; taken {
		return sentinel.ErrAlreadyUsed
	}
	clone := *a
	s.byID[a.ID] = &clone
	s.byEmail[key] = a.ID
	return nil
}

func (s *InMemory) FindByEmail(_ context.Context, address string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	accountID, ok := s.byEmail[email.Normalize(address)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *s.byID[accountID]
	return &clone, nil
}

func (s *InMemory) FindByIDs(_ context.Context, ids []id.AccountID) (map[id.AccountID]*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[id.AccountID]*models.Account, len(ids))
	for _, accountID := range ids {
		if a, ok := s.byID[accountID]; ok {
			clone := *a
			out[accountID] = &clone
		}
	}
	return out, nil
}
