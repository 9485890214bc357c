package membership

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

// PostgresStore persists memberships. The (person_id, grove_id) unique
// constraint is the final arbiter of pair uniqueness.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const membershipColumns = `id, person_id, grove_id, is_original, adoption_type, status, subscription_id, created_at`

func (s *PostgresStore) Create(ctx context.Context, m *models.Membership) error {
	query := `INSERT INTO memberships (` + membershipColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	var adoption sql.NullString
	if m.AdoptionType != models.AdoptionNone {
		adoption = sql.NullString{String: string(m.AdoptionType), Valid: true}
	}
	var subscription uuid.NullUUID
	if m.SubscriptionID != nil {
		subscription = uuid.NullUUID{UUID: uuid.UUID(*m.SubscriptionID), Valid: true}
	}
	_, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(m.ID),
		uuid.UUID(m.PersonID),
		uuid.UUID(m.GroveID),
		m.IsOriginal,
		adoption,
		string(m.Status),
		subscription,
		m.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, membershipID id.MembershipID) (*models.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE id = $1`
	m, err := scanMembership(txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(membershipID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find membership: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) Exists(ctx context.Context, personID id.PersonID, groveID id.GroveID) (bool, error) {
	var exists bool
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM memberships WHERE person_id = $1 AND grove_id = $2)`,
		uuid.UUID(personID), uuid.UUID(groveID),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check membership exists: %w", err)
	}
	return exists, nil
}

// Delete removes the row and returns it, so the caller knows whether it was
// counted without a separate read.
func (s *PostgresStore) Delete(ctx context.Context, membershipID id.MembershipID) (*models.Membership, error) {
	query := `DELETE FROM memberships WHERE id = $1 RETURNING ` + membershipColumns
	m, err := scanMembership(txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(membershipID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("delete membership: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) ListByPerson(ctx context.Context, personID id.PersonID) ([]*models.Membership, error) {
	return s.list(ctx, `SELECT `+membershipColumns+` FROM memberships WHERE person_id = $1 ORDER BY created_at, id`, uuid.UUID(personID))
}

func (s *PostgresStore) ListByPersons(ctx context.Context, personIDs []id.PersonID) ([]*models.Membership, error) {
	if len(personIDs) == 0 {
		return nil, nil
	}
	raw := make([]string, len(personIDs))
	for i, p := range personIDs {
		raw[i] = p.String()
	}
	return s.list(ctx, `SELECT `+membershipColumns+` FROM memberships WHERE person_id = ANY($1::uuid[]) ORDER BY created_at, id`, pq.Array(raw))
}

func (s *PostgresStore) ListByGrove(ctx context.Context, groveID id.GroveID) ([]*models.Membership, error) {
	return s.list(ctx, `SELECT `+membershipColumns+` FROM memberships WHERE grove_id = $1 ORDER BY created_at, id`, uuid.UUID(groveID))
}

func (s *PostgresStore) CountOriginal(ctx context.Context, groveID id.GroveID) (int, error) {
	var n int
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memberships WHERE grove_id = $1 AND is_original`, uuid.UUID(groveID),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count original memberships: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*models.Membership, error) {
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()
	var out []*models.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMembership(row rowScanner) (*models.Membership, error) {
	var (
		m                           models.Membership
		membershipID, person, grove uuid.UUID
		adoption                    sql.NullString
		status                      string
		subscription                uuid.NullUUID
	)
	if err := row.Scan(&membershipID, &person, &grove, &m.IsOriginal, &adoption, &status, &subscription, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.ID = id.MembershipID(membershipID)
	m.PersonID = id.PersonID(person)
	m.GroveID = id.GroveID(grove)
	m.AdoptionType = models.AdoptionType(adoption.String)
	m.Status = models.MembershipStatus(status)
	if subscription.Valid {
		sub := id.SubscriptionID(subscription.UUID)
		m.SubscriptionID = &sub
	}
	return &m, nil
}
