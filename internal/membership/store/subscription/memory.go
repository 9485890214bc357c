package subscription

import (
	"context"
	"sync"

	"heirloom/internal/membership/models"
	id "heirloom/pkg/domain"
)

// InMemory mirrors the subscription status feed.
type InMemory struct {
	mu   sync.RWMutex
	subs map[id.SubscriptionID]*models.Subscription
}

func NewInMemory() *InMemory {
	return &InMemory{subs: make(map[id.SubscriptionID]*models.Subscription)}
}

// Upsert records the latest status reported by the feed.
func (s *InMemory) Upsert(_ context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *sub
	s.subs[sub.ID] = &clone
	return nil
}

func (s *InMemory) FindByIDs(_ context.Context, ids []id.SubscriptionID) (map[id.SubscriptionID]*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[id.SubscriptionID]*models.Subscription, len(ids))
	for _, subID := range ids {
		if sub, ok := s.subs[subID]; ok {
			clone := *sub
			out[subID] = &clone
		}
	}
	return out, nil
}
