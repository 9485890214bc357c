package subscription

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"heirloom/internal/membership/models"
	id "heirloom/pkg/domain"
)

// PostgresStore reads subscription status written by the billing feed.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Upsert(ctx context.Context, sub *models.Subscription) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, status) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status
	`, uuid.UUID(sub.ID), sub.Status)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByIDs(ctx context.Context, ids []id.SubscriptionID) (map[id.SubscriptionID]*models.Subscription, error) {
	out := make(map[id.SubscriptionID]*models.Subscription, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	raw := make([]string, len(ids))
	for i, subID := range ids {
		raw[i] = subID.String()
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, status FROM subscriptions WHERE id = ANY($1::uuid[])`, pq.Array(raw))
	if err != nil {
		return nil, fmt.Errorf("find subscriptions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			raw uuid.UUID
			sub models.Subscription
		)
		if err := rows.Scan(&raw, &sub.Status); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		sub.ID = id.SubscriptionID(raw)
		out[sub.ID] = &sub
	}
	return out, rows.Err()
}
