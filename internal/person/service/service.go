package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"heirloom/internal/person/metrics"
	"heirloom/internal/person/models"
	"heirloom/pkg/attrs"
	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
	"heirloom/pkg/email"
	audit "heirloom/pkg/platform/audit"
	"heirloom/pkg/platform/sentinel"
	"heirloom/pkg/platform/tx"
	"heirloom/pkg/requestcontext"
)

const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 100
)

type PersonStore interface {
	Create(ctx context.Context, p *models.Person) error
	FindByID(ctx context.Context, personID id.PersonID) (*models.Person, error)
	FindFirstByAccount(ctx context.Context, accountID id.AccountID) (*models.Person, error)
	SearchByName(ctx context.Context, query string, limit int) ([]*models.Person, error)
}

type AccountStore interface {
	FindByEmail(ctx context.Context, address string) (*models.Account, error)
	FindByIDs(ctx context.Context, ids []id.AccountID) (map[id.AccountID]*models.Account, error)
}

// MembershipReader supplies the grove side of enrichment. Implemented by the
// membership module.
type MembershipReader interface {
	ListForPersons(ctx context.Context, personIDs []id.PersonID) (map[id.PersonID][]models.MembershipSummary, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the person registry.
type Service struct {
	persons        PersonStore
	accounts       AccountStore
	memberships    MembershipReader
	tx             tx.Runner
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTxRunner(runner tx.Runner) Option {
	return func(s *Service) {
		if runner != nil {
			s.tx = runner
		}
	}
}

func New(persons PersonStore, accounts AccountStore, memberships MembershipReader, opts ...Option) *Service {
	s := &Service{persons: persons, accounts: accounts, memberships: memberships, tx: tx.NewLockingRunner()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a new Person outside of any grove.
func (s *Service) Create(ctx context.Context, opts models.CreateOptions) (*models.Person, error) {
	p, err := models.NewPerson(id.PersonID(uuid.New()), opts, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.Message(err))
		}
		return nil, err
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.persons.Create(ctx, p); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create person")
		}
		return s.logAudit(ctx, string(audit.EventPersonCreated), "person_id", p.ID.String())
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncrementPersonsCreated()
	}
	return p, nil
}

// FindByAccountEmail returns the first Person linked to the account with the
// given email, enriched with memberships.
func (s *Service) FindByAccountEmail(ctx context.Context, address string) (*models.PersonWithMemberships, error) {
	start := time.Now()
	defer s.observeRead(start)

	address = email.Normalize(address)
	if address == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "email is required")
	}

	account, err := s.accounts.FindByEmail(ctx, address)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}

	p, err := s.persons.FindFirstByAccount(ctx, account.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no person linked to account")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load person")
	}

	enriched, err := s.enrich(ctx, []*models.Person{p})
	if err != nil {
		return nil, err
	}
	return enriched[0], nil
}

// FindByID returns a Person enriched with memberships.
func (s *Service) FindByID(ctx context.Context, personID id.PersonID) (*models.PersonWithMemberships, error) {
	start := time.Now()
	defer s.observeRead(start)

	p, err := s.persons.FindByID(ctx, personID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "person not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load person")
	}

	enriched, err := s.enrich(ctx, []*models.Person{p})
	if err != nil {
		return nil, err
	}
	return enriched[0], nil
}

// SearchByName performs a case-insensitive substring match over names.
// A non-positive limit means DefaultSearchLimit.
func (s *Service) SearchByName(ctx context.Context, query string, limit int) ([]*models.PersonWithMemberships, error) {
	start := time.Now()
	defer s.observeRead(start)

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "search query is required")
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	persons, err := s.persons.SearchByName(ctx, query, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search persons")
	}
	return s.enrich(ctx, persons)
}

// enrich attaches memberships, owner display names and grove counts.
func (s *Service) enrich(ctx context.Context, persons []*models.Person) ([]*models.PersonWithMemberships, error) {
	out := make([]*models.PersonWithMemberships, len(persons))
	if len(persons) == 0 {
		return out, nil
	}

	personIDs := make([]id.PersonID, len(persons))
	for i, p := range persons {
		personIDs[i] = p.ID
	}

	summaries := map[id.PersonID][]models.MembershipSummary{}
	if s.memberships != nil {
		var err error
		summaries, err = s.memberships.ListForPersons(ctx, personIDs)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load memberships")
		}
	}

	owners := make(map[id.AccountID]struct{})
	for _, list := range summaries {
		for _, m := range list {
			owners[m.GroveOwnerAccountID] = struct{}{}
		}
	}
	ownerIDs := make([]id.AccountID, 0, len(owners))
	for accountID := range owners {
		ownerIDs = append(ownerIDs, accountID)
	}
	accounts, err := s.accounts.FindByIDs(ctx, ownerIDs)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load grove owners")
	}

	for i, p := range persons {
		list := summaries[p.ID]
		enriched := make([]models.MembershipSummary, len(list))
		for j, m := range list {
			m.OwnerDisplayName = ownerDisplayName(accounts[m.GroveOwnerAccountID])
			enriched[j] = m
		}
		out[i] = &models.PersonWithMemberships{
			Person:      p,
			Memberships: enriched,
			GroveCount:  len(enriched),
		}
	}
	return out, nil
}

// ownerDisplayName prefers the account's own display name and falls back to
// one derived from its email.
func ownerDisplayName(a *models.Account) string {
	if a == nil {
		return ""
	}
	if name := strings.TrimSpace(a.DisplayName); name != "" {
		return name
	}
	return email.DisplayNameFromEmail(a.Email)
}

func (s *Service) observeRead(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveEnrichedRead(start)
	}
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) error {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
	if s.auditPublisher == nil {
		return nil
	}
	actor := requestcontext.AccountID(ctx)
	actorID := ""
	if !actor.IsNil() {
		actorID = actor.String()
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Subject:   attrs.ExtractString(attributes, "person_id"),
		Action:    event,
		ActorID:   actorID,
		RequestID: requestID,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}
