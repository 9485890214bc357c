package branch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"heirloom/internal/legacy/models"
	"heirloom/internal/platform/postgres"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
	txcontext "heirloom/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const branchColumns = `id, owner_id, type, status, legacy_marked_by, legacy_proof_url, legacy_entered_at, birth_date, death_date, created_at`

func (s *PostgresStore) Create(ctx context.Context, b *models.Branch) error {
	query := `INSERT INTO branches (` + branchColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(b.ID),
		uuid.UUID(b.OwnerID),
		string(b.Type),
		string(b.Status),
		nullAccount(b.LegacyMarkedBy),
		nullString(b.LegacyProofURL),
		nullTime(b.LegacyEnteredAt),
		nullTime(b.BirthDate),
		nullTime(b.DeathDate),
		b.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert branch: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, branchID id.BranchID) (*models.Branch, error) {
	query := `SELECT ` + branchColumns + ` FROM branches WHERE id = $1`
	b, err := scanBranch(txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(branchID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find branch: %w", err)
	}
	return b, nil
}

// SaveLegacy writes the legacy fields only while the row is still living.
func (s *PostgresStore) SaveLegacy(ctx context.Context, b *models.Branch) error {
	exec := txcontext.ExecutorFrom(ctx, s.db)
	res, err := exec.ExecContext(ctx, `
		UPDATE branches
		SET type = $2, legacy_marked_by = $3, legacy_proof_url = $4, legacy_entered_at = $5,
		    birth_date = $6, death_date = $7
		WHERE id = $1 AND type = 'living'
	`,
		uuid.UUID(b.ID),
		string(b.Type),
		nullAccount(b.LegacyMarkedBy),
		nullString(b.LegacyProofURL),
		nullTime(b.LegacyEnteredAt),
		nullTime(b.BirthDate),
		nullTime(b.DeathDate),
	)
	if err != nil {
		return fmt.Errorf("mark branch legacy: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark branch legacy: %w", err)
	}
	if affected == 1 {
		return nil
	}
	var exists bool
	if err := exec.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM branches WHERE id = $1)`, uuid.UUID(b.ID)).Scan(&exists); err != nil {
		return fmt.Errorf("check branch exists: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrInvalidState
}

func (s *PostgresStore) PutEntry(ctx context.Context, branchID id.BranchID, entryID, status string) error {
	entryUUID, err := uuid.Parse(entryID)
	if err != nil {
		return fmt.Errorf("parse entry id: %w", err)
	}
	_, err = txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO branch_entries (id, branch_id, status) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status
	`, entryUUID, uuid.UUID(branchID), status)
	if err != nil {
		return fmt.Errorf("put branch entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListEmptyLegacy(ctx context.Context, cutoff time.Time) ([]*models.Branch, error) {
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, `
		SELECT `+branchColumns+` FROM branches b
		WHERE (b.type = 'legacy' OR b.status = 'memorial')
		  AND b.created_at <= $1
		  AND NOT EXISTS (
		      SELECT 1 FROM branch_entries e WHERE e.branch_id = b.id AND e.status = 'active'
		  )
		ORDER BY b.created_at
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list empty legacy branches: %w", err)
	}
	defer rows.Close()
	var out []*models.Branch
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan branch: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBranch(row rowScanner) (*models.Branch, error) {
	var (
		b                             models.Branch
		branchID, ownerID             uuid.UUID
		branchType, status            string
		markedBy                      uuid.NullUUID
		proofURL                      sql.NullString
		enteredAt, birthDate, deathAt sql.NullTime
	)
	if err := row.Scan(&branchID, &ownerID, &branchType, &status, &markedBy, &proofURL, &enteredAt, &birthDate, &deathAt, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.ID = id.BranchID(branchID)
	b.OwnerID = id.AccountID(ownerID)
	b.Type = models.BranchType(branchType)
	b.Status = models.BranchStatus(status)
	if markedBy.Valid {
		marker := id.AccountID(markedBy.UUID)
		b.LegacyMarkedBy = &marker
	}
	b.LegacyProofURL = proofURL.String
	b.LegacyEnteredAt = timePtr(enteredAt)
	b.BirthDate = timePtr(birthDate)
	b.DeathDate = timePtr(deathAt)
	return &b, nil
}

func nullAccount(a *id.AccountID) uuid.NullUUID {
	if a == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*a), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
