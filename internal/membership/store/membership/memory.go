package membership

import (
	"context"
	"sort"
	"sync"

	"heirloom/internal/membership/models"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
)

type pairKey struct {
	person id.PersonID
	grove  id.GroveID
}

// InMemory stores memberships with a (person, grove) uniqueness index.
type InMemory struct {
	mu     sync.RWMutex
	byID   map[id.MembershipID]*models.Membership
	byPair map[pairKey]id.MembershipID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:   make(map[id.MembershipID]*models.Membership),
		byPair: make(map[pairKey]id.MembershipID),
	}
}

// Create inserts m. Returns sentinel.ErrAlreadyUsed when the pair exists.
func (s *InMemory) Create(_ context.Context, m *models.Membership) error {
	key := pairKey{m.PersonID, m.GroveID}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byPair[key]; exists {
		return sentinel.ErrAlreadyUsed
	}
	if _, exists := s.byID[m.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	clone := *m
	s.byID[m.ID] = &clone
	s.byPair[key] = m.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, membershipID id.MembershipID) (*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byID[membershipID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *m
	return &clone, nil
}

func (s *InMemory) Exists(_ context.Context, personID id.PersonID, groveID id.GroveID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byPair[pairKey{personID, groveID}]
	return ok, nil
}

// Delete removes the membership and returns what was removed.
func (s *InMemory) Delete(_ context.Context, membershipID id.MembershipID) (*models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[membershipID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	delete(s.byID, membershipID)
	delete(s.byPair, pairKey{m.PersonID, m.GroveID})
	return m, nil
}

func (s *InMemory) ListByPerson(ctx context.Context, personID id.PersonID) ([]*models.Membership, error) {
	return s.ListByPersons(ctx, []id.PersonID{personID})
}

func (s *InMemory) ListByPersons(_ context.Context, personIDs []id.PersonID) ([]*models.Membership, error) {
	want := make(map[id.PersonID]bool, len(personIDs))
	for _, p := range personIDs {
		want[p] = true
	}
	return s.filter(func(m *models.Membership) bool { return want[m.PersonID] }), nil
}

func (s *InMemory) ListByGrove(_ context.Context, groveID id.GroveID) ([]*models.Membership, error) {
	return s.filter(func(m *models.Membership) bool { return m.GroveID == groveID }), nil
}

// CountOriginal counts the memberships that consume capacity in groveID.
func (s *InMemory) CountOriginal(_ context.Context, groveID id.GroveID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, m := range s.byID {
		if m.GroveID == groveID && m.IsOriginal {
			n++
		}
	}
	return n, nil
}

// AttachSubscription records the billing feed's subscription for a membership.
func (s *InMemory) AttachSubscription(_ context.Context, membershipID id.MembershipID, subscriptionID id.SubscriptionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[membershipID]
	if !ok {
		return sentinel.ErrNotFound
	}
	m.SubscriptionID = &subscriptionID
	return nil
}

func (s *InMemory) filter(keep func(*models.Membership) bool) []*models.Membership {
	s.mu.RLock()
	out := make([]*models.Membership, 0)
	for _, m := range s.byID {
		if keep(m) {
			clone := *m
			out = append(out, &clone)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}
