package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"heirloom/internal/person/models"
	"heirloom/internal/platform/postgres"
	id "heirloom/pkg/domain"
	"heirloom/pkg/email"
	"heirloom/pkg/platform/sentinel"
)

// PostgresStore reads accounts from PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, a *models.Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, email, display_name) VALUES ($1, $2, $3)`,
		uuid.UUID(a.ID), email.Normalize(a.Email), a.DisplayName,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, address string) (*models.Account, error) {
	var (
		a         models.Account
		accountID uuid.UUID
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, display_name FROM accounts WHERE LOWER(email) = $1`,
		email.Normalize(address),
	).Scan(&accountID, &a.Email, &a.DisplayName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find account by email: %w", err)
	}
	a.ID = id.AccountID(accountID)
	return &a, nil
}

func (s *PostgresStore) FindByIDs(ctx context.Context, ids []id.AccountID) (map[id.AccountID]*models.Account, error) {
	out := make(map[id.AccountID]*models.Account, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	raw := make([]string, len(ids))
	for i, accountID := range ids {
		raw[i] = accountID.String()
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, display_name FROM accounts WHERE id = ANY($1::uuid[])`,
		pq.Array(raw),
	)
	if err != nil {
		return nil, fmt.Errorf("find accounts by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			a         models.Account
			accountID uuid.UUID
		)
		if err := rows.Scan(&accountID, &a.Email, &a.DisplayName); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.ID = id.AccountID(accountID)
		out[a.ID] = &a
	}
	return out, rows.Err()
}
