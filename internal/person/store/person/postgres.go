package person

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"heirloom/internal/person/models"
	"heirloom/internal/platform/postgres"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
	txcontext "heirloom/pkg/platform/tx"
)

// PostgresStore persists persons in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const personColumns = `id, account_id, name, is_legacy, birth_date, death_date, memory_count, memory_limit,
	discovery_enabled, owner_id, moderator_id, trustee_id, trustee_expires_at, created_at`

func (s *PostgresStore) Create(ctx context.Context, p *models.Person) error {
	query := `
		INSERT INTO persons (` + personColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(p.ID),
		nullableAccount(p.AccountID),
		p.Name,
		p.IsLegacy,
		p.BirthDate,
		p.DeathDate,
		p.MemoryCount,
		p.MemoryLimit,
		p.DiscoveryEnabled,
		nullableAccount(p.OwnerID),
		nullableAccount(p.ModeratorID),
		nullableAccount(p.TrusteeID),
		p.TrusteeExpiresAt,
		p.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert person: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, personID id.PersonID) (*models.Person, error) {
	query := `SELECT ` + personColumns + ` FROM persons WHERE id = $1`
	p, err := scanPerson(txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(personID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find person: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) FindByIDs(ctx context.Context, ids []id.PersonID) (map[id.PersonID]*models.Person, error) {
	out := make(map[id.PersonID]*models.Person, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	raw := make([]string, len(ids))
	for i, personID := range ids {
		raw[i] = personID.String()
	}
	query := `SELECT ` + personColumns + ` FROM persons WHERE id = ANY($1::uuid[])`
	persons, err := s.query(ctx, query, pq.Array(raw))
	if err != nil {
		return nil, fmt.Errorf("find persons by ids: %w", err)
	}
	for _, p := range persons {
		out[p.ID] = p
	}
	return out, nil
}

func (s *PostgresStore) FindFirstByAccount(ctx context.Context, accountID id.AccountID) (*models.Person, error) {
	query := `SELECT ` + personColumns + ` FROM persons WHERE account_id = $1 ORDER BY created_at ASC LIMIT 1`
	p, err := scanPerson(s.db.QueryRowContext(ctx, query, uuid.UUID(accountID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find person by account: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) SearchByName(ctx context.Context, query string, limit int) ([]*models.Person, error) {
	sqlQuery := `
		SELECT ` + personColumns + `
		FROM persons
		WHERE name ILIKE $1 ESCAPE '\'
		ORDER BY name ASC, created_at ASC
		LIMIT $2
	`
	persons, err := s.query(ctx, sqlQuery, "%"+escapeLike(query)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("search persons: %w", err)
	}
	return persons, nil
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*models.Person, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var persons []*models.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		persons = append(persons, p)
	}
	return persons, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (*models.Person, error) {
	var (
		p                                        models.Person
		personID                                 uuid.UUID
		accountID, ownerID, moderatorID, trustee uuid.NullUUID
		birthDate, deathDate, trusteeExpiresAt   sql.NullTime
	)
	if err := row.Scan(
		&personID,
		&accountID,
		&p.Name,
		&p.IsLegacy,
		&birthDate,
		&deathDate,
		&p.MemoryCount,
		&p.MemoryLimit,
		&p.DiscoveryEnabled,
		&ownerID,
		&moderatorID,
		&trustee,
		&trusteeExpiresAt,
		&p.CreatedAt,
	); err != nil {
		return nil, err
	}
	p.ID = id.PersonID(personID)
	p.AccountID = accountFromNull(accountID)
	p.OwnerID = accountFromNull(ownerID)
	p.ModeratorID = accountFromNull(moderatorID)
	p.TrusteeID = accountFromNull(trustee)
	p.BirthDate = timeFromNull(birthDate)
	p.DeathDate = timeFromNull(deathDate)
	p.TrusteeExpiresAt = timeFromNull(trusteeExpiresAt)
	return &p, nil
}

func nullableAccount(a *id.AccountID) uuid.NullUUID {
	if a == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*a), Valid: true}
}

func accountFromNull(n uuid.NullUUID) *id.AccountID {
	if !n.Valid {
		return nil
	}
	a := id.AccountID(n.UUID)
	return &a
}

func timeFromNull(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
