package person

import (
	"context"
	"sort"
	"strings"
	"sync"

	"heirloom/internal/person/models"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
)

// InMemory is a concurrency-safe Person store for tests and the memory driver.
type InMemory struct {
	mu      sync.RWMutex
	persons map[id.PersonID]*models.Person
}

func NewInMemory() *InMemory {
	return &InMemory{persons: make(map[id.PersonID]*models.Person)}
}

func (s *InMemory) Create(_ context.Context, p *models.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.persons[p.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	clone := *p
	s.persons[p.ID] = &clone
	return nil
}

func (s *InMemory) FindByID(_ context.Context, personID id.PersonID) (*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.persons[personID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (s *InMemory) FindByIDs(_ context.Context, ids []id.PersonID) (map[id.PersonID]*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[id.PersonID]*models.Person, len(ids))
	for _, personID := range ids {
		if p, ok := s.persons[personID]; ok {
			clone := *p
			out[personID] = &clone
		}
	}
	return out, nil
}

// FindFirstByAccount returns the earliest-created Person linked to accountID.
func (s *InMemory) FindFirstByAccount(_ context.Context, accountID id.AccountID) (*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var first *models.Person
	for _, p := range s.persons {
		if p.AccountID == nil || *p.AccountID != accountID {
			continue
		}
		if first == nil || p.CreatedAt.Before(first.CreatedAt) {
			first = p
		}
	}
	if first == nil {
		return nil, sentinel.ErrNotFound
	}
	clone := *first
	return &clone, nil
}

// SearchByName matches query as a case-insensitive substring, ordered by name.
func (s *InMemory) SearchByName(_ context.Context, query string, limit int) ([]*models.Person, error) {
	needle := strings.ToLower(query)
	s.mu.RLock()
	matches := make([]*models.Person, 0)
	for _, p := range s.persons {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			clone := *p
			matches = append(matches, &clone)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Name != matches[j].Name {
			return matches[i].Name < matches[j].Name
		}
		return matches[i].CreatedAt.Before(matches[j].CreatedAt)
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}
