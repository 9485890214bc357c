package heir

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"heirloom/internal/platform/postgres"
	"heirloom/internal/succession/models"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
	txcontext "heirloom/pkg/platform/tx"
)

// PostgresStore persists heirs. Release is a conditional update on
// notified = false, so concurrent releases of one heir cannot both win.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const heirColumns = `id, branch_id, contact, release_condition, release_date, download_token, notified, notified_at, created_at`

func (s *PostgresStore) Create(ctx context.Context, h *models.Heir) error {
	query := `INSERT INTO heirs (` + heirColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(h.ID),
		uuid.UUID(h.BranchID),
		h.Contact,
		string(h.ReleaseCondition),
		nullTime(h.ReleaseDate),
		h.DownloadToken,
		h.Notified,
		nullTime(h.NotifiedAt),
		h.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert heir: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, heirID id.HeirID) (*models.Heir, error) {
	return s.findOne(ctx, `SELECT `+heirColumns+` FROM heirs WHERE id = $1`, uuid.UUID(heirID))
}

func (s *PostgresStore) FindByToken(ctx context.Context, token string) (*models.Heir, error) {
	return s.findOne(ctx, `SELECT `+heirColumns+` FROM heirs WHERE download_token = $1`, token)
}

func (s *PostgresStore) ListByBranch(ctx context.Context, branchID id.BranchID) ([]*models.Heir, error) {
	return s.list(ctx, `SELECT `+heirColumns+` FROM heirs WHERE branch_id = $1 ORDER BY created_at`, uuid.UUID(branchID))
}

func (s *PostgresStore) ListDue(ctx context.Context, now time.Time) ([]*models.Heir, error) {
	return s.list(ctx, `
		SELECT `+heirColumns+` FROM heirs
		WHERE notified = FALSE AND release_condition = 'AFTER_DATE' AND release_date <= $1
		ORDER BY release_date, created_at
	`, now)
}

func (s *PostgresStore) MarkReleased(ctx context.Context, heirID id.HeirID, at time.Time) error {
	exec := txcontext.ExecutorFrom(ctx, s.db)
	res, err := exec.ExecContext(ctx,
		`UPDATE heirs SET notified = TRUE, notified_at = $2 WHERE id = $1 AND notified = FALSE`,
		uuid.UUID(heirID), at,
	)
	if err != nil {
		return fmt.Errorf("mark heir released: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark heir released: %w", err)
	}
	if affected == 1 {
		return nil
	}
	var exists bool
	if err := exec.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM heirs WHERE id = $1)`, uuid.UUID(heirID)).Scan(&exists); err != nil {
		return fmt.Errorf("check heir exists: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrInvalidState
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg any) (*models.Heir, error) {
	h, err := scanHeir(txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find heir: %w", err)
	}
	return h, nil
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*models.Heir, error) {
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list heirs: %w", err)
	}
	defer rows.Close()
	var out []*models.Heir
	for rows.Next() {
		h, err := scanHeir(rows)
		if err != nil {
			return nil, fmt.Errorf("scan heir: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHeir(row rowScanner) (*models.Heir, error) {
	var (
		h                   models.Heir
		heirID, branchID    uuid.UUID
		condition           string
		releaseDate, notice sql.NullTime
	)
	if err := row.Scan(&heirID, &branchID, &h.Contact, &condition, &releaseDate, &h.DownloadToken, &h.Notified, &notice, &h.CreatedAt); err != nil {
		return nil, err
	}
	h.ID = id.HeirID(heirID)
	h.BranchID = id.BranchID(branchID)
	h.ReleaseCondition = models.ReleaseCondition(condition)
	if releaseDate.Valid {
		t := releaseDate.Time
		h.ReleaseDate = &t
	}
	if notice.Valid {
		t := notice.Time
		h.NotifiedAt = &t
	}
	return &h, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
