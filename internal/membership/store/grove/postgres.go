package grove

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"heirloom/internal/membership/models"
	"heirloom/internal/platform/postgres"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
	txcontext "heirloom/pkg/platform/tx"
)

// PostgresStore persists groves in PostgreSQL. The counter is only ever moved
// by single conditional UPDATE statements.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const groveColumns = `id, owner_account_id, name, tree_limit, tree_count, plan_type, created_at`

func (s *PostgresStore) Create(ctx context.Context, g *models.Grove) error {
	query := `INSERT INTO groves (` + groveColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(g.ID), uuid.UUID(g.OwnerAccountID), g.Name, g.TreeLimit, g.TreeCount, g.PlanType, g.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert grove: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, groveID id.GroveID) (*models.Grove, error) {
	return s.findOne(ctx, `SELECT `+groveColumns+` FROM groves WHERE id = $1`, groveID)
}

// FindByIDForUpdate locks the grove row until the surrounding transaction ends.
func (s *PostgresStore) FindByIDForUpdate(ctx context.Context, groveID id.GroveID) (*models.Grove, error) {
	return s.findOne(ctx, `SELECT `+groveColumns+` FROM groves WHERE id = $1 FOR UPDATE`, groveID)
}

func (s *PostgresStore) findOne(ctx context.Context, query string, groveID id.GroveID) (*models.Grove, error) {
	g, err := scanGrove(txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(groveID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find grove: %w", err)
	}
	return g, nil
}

func (s *PostgresStore) FindByIDs(ctx context.Context, ids []id.GroveID) (map[id.GroveID]*models.Grove, error) {
	out := make(map[id.GroveID]*models.Grove, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	raw := make([]string, len(ids))
	for i, groveID := range ids {
		raw[i] = groveID.String()
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+groveColumns+` FROM groves WHERE id = ANY($1::uuid[])`, pq.Array(raw))
	if err != nil {
		return nil, fmt.Errorf("find groves by ids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		g, err := scanGrove(rows)
		if err != nil {
			return nil, fmt.Errorf("scan grove: %w", err)
		}
		out[g.ID] = g
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListIDs(ctx context.Context) ([]id.GroveID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM groves ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list groves: %w", err)
	}
	defer rows.Close()
	var ids []id.GroveID
	for rows.Next() {
		var raw uuid.UUID
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan grove id: %w", err)
		}
		ids = append(ids, id.GroveID(raw))
	}
	return ids, rows.Err()
}

// IncrementIfBelowLimit applies the capacity check and the increment as one
// statement. Zero affected rows means the grove is full or missing.
func (s *PostgresStore) IncrementIfBelowLimit(ctx context.Context, groveID id.GroveID) error {
	exec := txcontext.ExecutorFrom(ctx, s.db)
	res, err := exec.ExecContext(ctx, `
		UPDATE groves
		SET tree_count = tree_count + 1
		WHERE id = $1 AND tree_count < tree_limit
	`, uuid.UUID(groveID))
	if err != nil {
		return fmt.Errorf("increment tree count: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment tree count rows affected: %w", err)
	}
	if rows == 1 {
		return nil
	}
	return s.missingOr(ctx, exec, groveID, sentinel.ErrLimitReached)
}

// DecrementFloor subtracts one, never going below zero.
func (s *PostgresStore) DecrementFloor(ctx context.Context, groveID id.GroveID) error {
	res, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		UPDATE groves
		SET tree_count = GREATEST(tree_count - 1, 0)
		WHERE id = $1
	`, uuid.UUID(groveID))
	if err != nil {
		return fmt.Errorf("decrement tree count: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement tree count rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetTreeCount(ctx context.Context, groveID id.GroveID, count int) error {
	if count < 0 {
		return sentinel.ErrInvalidState
	}
	res, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx,
		`UPDATE groves SET tree_count = $2 WHERE id = $1`, uuid.UUID(groveID), count)
	if err != nil {
		if postgres.IsCheckViolation(err) {
			return sentinel.ErrInvalidState
		}
		return fmt.Errorf("set tree count: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set tree count rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) missingOr(ctx context.Context, exec txcontext.Executor, groveID id.GroveID, otherwise error) error {
	var exists bool
	if err := exec.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM groves WHERE id = $1)`, uuid.UUID(groveID)).Scan(&exists); err != nil {
		return fmt.Errorf("check grove exists: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return otherwise
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGrove(row rowScanner) (*models.Grove, error) {
	var (
		g                models.Grove
		groveID, ownerID uuid.UUID
	)
	if err := row.Scan(&groveID, &ownerID, &g.Name, &g.TreeLimit, &g.TreeCount, &g.PlanType, &g.CreatedAt); err != nil {
		return nil, err
	}
	g.ID = id.GroveID(groveID)
	g.OwnerAccountID = id.AccountID(ownerID)
	return &g, nil
}
