package manager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"heirloom/internal/legacy/models"
	"heirloom/internal/platform/postgres"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
	txcontext "heirloom/pkg/platform/tx"
)

// PostgresStore relies on legacy_managers_branch_user_unique for pair
// uniqueness.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, m *models.LegacyManager) error {
	_, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx,
		`INSERT INTO legacy_managers (id, branch_id, user_id, role, created_at) VALUES ($1, $2, $3, $4, $5)`,
		uuid.UUID(m.ID), uuid.UUID(m.BranchID), uuid.UUID(m.UserID), string(m.Role), m.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert legacy manager: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByBranch(ctx context.Context, branchID id.BranchID) ([]*models.LegacyManager, error) {
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx,
		`SELECT id, branch_id, user_id, role, created_at FROM legacy_managers WHERE branch_id = $1 ORDER BY created_at`,
		uuid.UUID(branchID),
	)
	if err != nil {
		return nil, fmt.Errorf("list legacy managers: %w", err)
	}
	defer rows.Close()
	out := make([]*models.LegacyManager, 0)
	for rows.Next() {
		var (
			m                        models.LegacyManager
			managerID, branch, owner uuid.UUID
			role                     string
		)
		if err := rows.Scan(&managerID, &branch, &owner, &role, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan legacy manager: %w", err)
		}
		m.ID = id.LegacyManagerID(managerID)
		m.BranchID = id.BranchID(branch)
		m.UserID = id.AccountID(owner)
		m.Role = models.ManagerRole(role)
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Exists(ctx context.Context, userID id.AccountID, branchID id.BranchID) (bool, error) {
	var exists bool
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM legacy_managers WHERE user_id = $1 AND branch_id = $2)`,
		uuid.UUID(userID), uuid.UUID(branchID),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check legacy manager: %w", err)
	}
	return exists, nil
}
