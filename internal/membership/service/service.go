package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"heirloom/internal/membership/metrics"
	"heirloom/internal/membership/models"
	personmodels "heirloom/internal/person/models"
	"heirloom/internal/plans"
	"heirloom/pkg/attrs"
	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
	audit "heirloom/pkg/platform/audit"
	"heirloom/pkg/platform/sentinel"
	"heirloom/pkg/platform/tx"
	"heirloom/pkg/requestcontext"
)

type GroveStore interface {
	FindByID(ctx context.Context, groveID id.GroveID) (*models.Grove, error)
	FindByIDForUpdate(ctx context.Context, groveID id.GroveID) (*models.Grove, error)
	FindByIDs(ctx context.Context, ids []id.GroveID) (map[id.GroveID]*models.Grove, error)
	ListIDs(ctx context.Context) ([]id.GroveID, error)
	IncrementIfBelowLimit(ctx context.Context, groveID id.GroveID) error
	DecrementFloor(ctx context.Context, groveID id.GroveID) error
	SetTreeCount(ctx context.Context, groveID id.GroveID, count int) error
}

type MembershipStore interface {
	Create(ctx context.Context, m *models.Membership) error
	FindByID(ctx context.Context, membershipID id.MembershipID) (*models.Membership, error)
	Exists(ctx context.Context, personID id.PersonID, groveID id.GroveID) (bool, error)
	Delete(ctx context.Context, membershipID id.MembershipID) (*models.Membership, error)
	ListByPerson(ctx context.Context, personID id.PersonID) ([]*models.Membership, error)
	ListByGrove(ctx context.Context, groveID id.GroveID) ([]*models.Membership, error)
	CountOriginal(ctx context.Context, groveID id.GroveID) (int, error)
}

type SubscriptionStore interface {
	FindByIDs(ctx context.Context, ids []id.SubscriptionID) (map[id.SubscriptionID]*models.Subscription, error)
}

type PersonStore interface {
	Create(ctx context.Context, p *personmodels.Person) error
	FindByID(ctx context.Context, personID id.PersonID) (*personmodels.Person, error)
	FindByIDs(ctx context.Context, ids []id.PersonID) (map[id.PersonID]*personmodels.Person, error)
}

// PlanCatalog resolves the next tier on the upgrade ladder.
type PlanCatalog interface {
	Next(planID string) (plans.Plan, bool)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the membership ledger and the capacity guard in front of it.
//
// Every write that can raise a grove's counter runs inside one unit of work
// whose last step is the conditional increment, so a full grove rejects the
// write even when two callers passed the pre-check concurrently.
type Service struct {
	groves         GroveStore
	memberships    MembershipStore
	subscriptions  SubscriptionStore
	persons        PersonStore
	catalog        PlanCatalog
	tx             tx.Runner
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
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

// WithTxRunner replaces the default process-local runner. Postgres-backed
// deployments pass the database runner so the ledger writes share one
// transaction.
func WithTxRunner(runner tx.Runner) Option {
	return func(s *Service) {
		if runner != nil {
			s.tx = runner
		}
	}
}

func New(groves GroveStore, memberships MembershipStore, subscriptions SubscriptionStore, persons PersonStore, catalog PlanCatalog, opts ...Option) *Service {
	s := &Service{
		groves:        groves,
		memberships:   memberships,
		subscriptions: subscriptions,
		persons:       persons,
		catalog:       catalog,
		tx:            tx.NewLockingRunner(),
		tracer:        otel.Tracer("heirloom/membership"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CanAddOriginalTree reports whether the grove has room for one more counted
// membership.
func (s *Service) CanAddOriginalTree(ctx context.Context, groveID id.GroveID) (bool, error) {
	g, err := s.loadGrove(ctx, groveID)
	if err != nil {
		return false, err
	}
	return g.HasCapacity(), nil
}

// CreatePersonInGrove creates a Person together with its original membership
// and consumes one unit of the grove's capacity. Nothing is written when the
// grove is full.
func (s *Service) CreatePersonInGrove(ctx context.Context, groveID id.GroveID, opts personmodels.CreateOptions) (*personmodels.Person, *models.Membership, error) {
	ctx, span := s.tracer.Start(ctx, "membership.CreatePersonInGrove",
		trace.WithAttributes(attribute.String("grove_id", groveID.String())))
	defer span.End()

	now := requestcontext.Now(ctx)
	p, err := personmodels.NewPerson(id.PersonID(uuid.New()), opts, now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, nil, dErrors.New(dErrors.CodeValidation, dErrors.Message(err))
		}
		return nil, nil, err
	}
	m := models.NewOriginalMembership(id.MembershipID(uuid.New()), p.ID, groveID, now)

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		g, err := s.loadGrove(ctx, groveID)
		if err != nil {
			return err
		}
		if !g.HasCapacity() {
			return capacityExceeded(g)
		}
		if err := s.persons.Create(ctx, p); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create person")
		}
		if err := s.memberships.Create(ctx, m); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create membership")
		}
		if err := s.consumeCapacity(ctx, g); err != nil {
			return err
		}
		return s.logAudit(ctx, string(audit.EventMembershipAdded),
			"grove_id", groveID.String(),
			"person_id", p.ID.String(),
			"membership_id", m.ID.String(),
			"kind", "original",
		)
	})
	if err != nil {
		s.recordFailure(span, err)
		return nil, nil, err
	}

	s.observeAdded("original")
	return p, m, nil
}

// LinkPersonToGrove attaches an existing Person to another grove. Adopted
// links consume capacity; rooted links never touch the counter.
func (s *Service) LinkPersonToGrove(ctx context.Context, personID id.PersonID, groveID id.GroveID, adoption models.AdoptionType) (*models.Membership, error) {
	if adoption == models.AdoptionNone {
		adoption = models.AdoptionRooted
	}
	ctx, span := s.tracer.Start(ctx, "membership.LinkPersonToGrove",
		trace.WithAttributes(
			attribute.String("grove_id", groveID.String()),
			attribute.String("adoption_type", adoption.String()),
		))
	defer span.End()

	m, err := models.NewLinkMembership(id.MembershipID(uuid.New()), personID, groveID, adoption, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, dErrors.Message(err))
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.persons.FindByID(ctx, personID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "person not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load person")
		}
		g, err := s.loadGrove(ctx, groveID)
		if err != nil {
			return err
		}

		exists, err := s.memberships.Exists(ctx, personID, groveID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check membership")
		}
		if exists {
			return duplicateMembership()
		}

		if adoption.Counts() && !g.HasCapacity() {
			return capacityExceeded(g)
		}
		if err := s.memberships.Create(ctx, m); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return duplicateMembership()
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create membership")
		}
		if adoption.Counts() {
			if err := s.consumeCapacity(ctx, g); err != nil {
				return err
			}
		}
		return s.logAudit(ctx, string(audit.EventMembershipAdded),
			"grove_id", groveID.String(),
			"person_id", personID.String(),
			"membership_id", m.ID.String(),
			"kind", adoption.String(),
		)
	})
	if err != nil {
		s.recordFailure(span, err)
		return nil, err
	}

	s.observeAdded(adoption.String())
	return m, nil
}

// RemovePersonFromGrove deletes a membership and releases its capacity when it
// was counted. The grove row is locked first so the delete and the decrement
// land together; a concurrent SyncTreeCount sees either both or neither.
func (s *Service) RemovePersonFromGrove(ctx context.Context, membershipID id.MembershipID) error {
	existing, err := s.memberships.FindByID(ctx, membershipID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return membershipNotFound()
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load membership")
	}

	var (
		removed *models.Membership
		drifted bool
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.groves.FindByIDForUpdate(ctx, existing.GroveID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "grove not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock grove")
		}
		var err error
		removed, err = s.memberships.Delete(ctx, membershipID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return membershipNotFound()
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove membership")
		}
		if removed.IsOriginal {
			// The delete stands; SyncTreeCount repairs the counter.
			if err := s.groves.DecrementFloor(ctx, removed.GroveID); err != nil {
				drifted = true
				if s.logger != nil {
					s.logger.ErrorContext(ctx, "tree count decrement failed after membership removal",
						"grove_id", removed.GroveID.String(),
						"membership_id", membershipID.String(),
						"error", err,
					)
				}
			}
		}
		return s.logAudit(ctx, string(audit.EventMembershipRemoved),
			"grove_id", removed.GroveID.String(),
			"person_id", removed.PersonID.String(),
			"membership_id", membershipID.String(),
		)
	})
	if err != nil {
		return err
	}

	if drifted {
		if s.metrics != nil {
			s.metrics.IncrementTreeCountDrift()
		}
		if err := s.logAudit(ctx, string(audit.EventTreeCountDrift),
			"grove_id", removed.GroveID.String(),
			"membership_id", membershipID.String(),
		); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "tree count drift not recorded", "error", err)
		}
	}
	if s.metrics != nil {
		s.metrics.IncrementMembershipsRemoved()
	}
	return nil
}

// GetPersonMemberships lists every grove the Person belongs to.
func (s *Service) GetPersonMemberships(ctx context.Context, personID id.PersonID) ([]*models.PersonMembership, error) {
	list, err := s.memberships.ListByPerson(ctx, personID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list memberships")
	}

	groveIDs := make([]id.GroveID, len(list))
	for i, m := range list {
		groveIDs[i] = m.GroveID
	}

	var (
		groves map[id.GroveID]*models.Grove
		subs   map[id.SubscriptionID]*models.Subscription
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		groves, err = s.groves.FindByIDs(gctx, groveIDs)
		return err
	})
	g.Go(func() error {
		var err error
		subs, err = s.subscriptions.FindByIDs(gctx, subscriptionIDs(list))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load membership projections")
	}

	out := make([]*models.PersonMembership, 0, len(list))
	for _, m := range list {
		row := &models.PersonMembership{Membership: m, HasSubscription: hasSubscription(m, subs)}
		if grove, ok := groves[m.GroveID]; ok {
			row.Grove = models.GroveSummary{
				ID:             grove.ID,
				Name:           grove.Name,
				OwnerAccountID: grove.OwnerAccountID,
				PlanType:       grove.PlanType,
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// GetPersonsInGrove lists the grove's members with their person summary.
func (s *Service) GetPersonsInGrove(ctx context.Context, groveID id.GroveID) ([]*models.GroveMember, error) {
	if _, err := s.loadGrove(ctx, groveID); err != nil {
		return nil, err
	}
	list, err := s.memberships.ListByGrove(ctx, groveID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list memberships")
	}

	personIDs := make([]id.PersonID, len(list))
	for i, m := range list {
		personIDs[i] = m.PersonID
	}

	var (
		persons map[id.PersonID]*personmodels.Person
		subs    map[id.SubscriptionID]*models.Subscription
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		persons, err = s.persons.FindByIDs(gctx, personIDs)
		return err
	})
	g.Go(func() error {
		var err error
		subs, err = s.subscriptions.FindByIDs(gctx, subscriptionIDs(list))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load membership projections")
	}

	out := make([]*models.GroveMember, 0, len(list))
	for _, m := range list {
		row := &models.GroveMember{Membership: m, HasSubscription: hasSubscription(m, subs)}
		if p, ok := persons[m.PersonID]; ok {
			row.Person = models.PersonSummary{ID: p.ID, Name: p.Name, IsLegacy: p.IsLegacy}
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *Service) IsPersonInGrove(ctx context.Context, personID id.PersonID, groveID id.GroveID) (bool, error) {
	exists, err := s.memberships.Exists(ctx, personID, groveID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check membership")
	}
	return exists, nil
}

// SyncTreeCount overwrites the cached counter with the number of counted
// memberships. It returns the stored value.
func (s *Service) SyncTreeCount(ctx context.Context, groveID id.GroveID) (int, error) {
	var (
		previous int
		actual   int
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		g, err := s.groves.FindByIDForUpdate(ctx, groveID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "grove not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load grove")
		}
		previous = g.TreeCount
		actual, err = s.memberships.CountOriginal(ctx, groveID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count memberships")
		}
		if err := s.groves.SetTreeCount(ctx, groveID, actual); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store tree count")
		}
		return s.logAudit(ctx, string(audit.EventTreeCountSynced),
			"grove_id", groveID.String(),
			"previous", previous,
			"actual", actual,
		)
	})
	if err != nil {
		return 0, err
	}

	if s.metrics != nil {
		s.metrics.IncrementTreeCountSyncs()
	}
	return actual, nil
}

// ValidateTreeCount reports whether the cached counter matches the
// recomputed count. It never writes.
func (s *Service) ValidateTreeCount(ctx context.Context, groveID id.GroveID) (bool, error) {
	check, err := s.InspectTreeCount(ctx, groveID)
	if err != nil {
		return false, err
	}
	return check.Valid(), nil
}

// InspectTreeCount returns both sides of the comparison ValidateTreeCount makes.
func (s *Service) InspectTreeCount(ctx context.Context, groveID id.GroveID) (models.TreeCountCheck, error) {
	g, err := s.loadGrove(ctx, groveID)
	if err != nil {
		return models.TreeCountCheck{}, err
	}
	actual, err := s.memberships.CountOriginal(ctx, groveID)
	if err != nil {
		return models.TreeCountCheck{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count memberships")
	}
	return models.TreeCountCheck{GroveID: groveID, Cached: g.TreeCount, Actual: actual}, nil
}

func (s *Service) GetCapacity(ctx context.Context, groveID id.GroveID) (models.Capacity, error) {
	g, err := s.loadGrove(ctx, groveID)
	if err != nil {
		return models.Capacity{}, err
	}
	return models.CapacityOf(g), nil
}

// GetSuggestedUpgrade returns the next tier above the grove's plan. Top-tier
// and unrecognised plans report no upgrade.
func (s *Service) GetSuggestedUpgrade(ctx context.Context, groveID id.GroveID) (models.UpgradeSuggestion, error) {
	g, err := s.loadGrove(ctx, groveID)
	if err != nil {
		return models.UpgradeSuggestion{}, err
	}
	suggestion := models.UpgradeSuggestion{GroveID: g.ID, CurrentPlan: g.PlanType}
	next, ok := s.catalog.Next(g.PlanType)
	if !ok {
		return suggestion, nil
	}
	suggestion.HasUpgrade = true
	suggestion.Suggested = &models.UpgradePlan{
		ID:         next.ID,
		Name:       next.Name,
		TreeLimit:  next.TreeLimit,
		PriceCents: next.PriceCents,
	}
	return suggestion, nil
}

// ListGroveIDs enumerates every grove, for the tree-count health job.
func (s *Service) ListGroveIDs(ctx context.Context) ([]id.GroveID, error) {
	ids, err := s.groves.ListIDs(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list groves")
	}
	return ids, nil
}

func (s *Service) loadGrove(ctx context.Context, groveID id.GroveID) (*models.Grove, error) {
	g, err := s.groves.FindByID(ctx, groveID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "grove not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load grove")
	}
	return g, nil
}

// consumeCapacity performs the conditional increment. It is the authoritative
// capacity check: the earlier HasCapacity read only avoids needless writes.
func (s *Service) consumeCapacity(ctx context.Context, g *models.Grove) error {
	err := s.groves.IncrementIfBelowLimit(ctx, g.ID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrLimitReached):
		return capacityExceeded(g)
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "grove not found")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update tree count")
	}
}

func capacityExceeded(g *models.Grove) error {
	return dErrors.New(dErrors.CodeCapacityExceeded, "grove has reached its tree limit for plan "+g.PlanType)
}

func membershipNotFound() error {
	return dErrors.New(dErrors.CodeNotFound, "membership not found")
}

func duplicateMembership() error {
	return dErrors.New(dErrors.CodeDuplicateMembership, "person is already a member of this grove")
}

func subscriptionIDs(list []*models.Membership) []id.SubscriptionID {
	var out []id.SubscriptionID
	for _, m := range list {
		if m.SubscriptionID != nil {
			out = append(out, *m.SubscriptionID)
		}
	}
	return out
}

func hasSubscription(m *models.Membership, subs map[id.SubscriptionID]*models.Subscription) bool {
	if m.SubscriptionID == nil {
		return false
	}
	return models.HasSubscription(subs[*m.SubscriptionID])
}

func (s *Service) observeAdded(kind string) {
	if s.metrics != nil {
		s.metrics.IncrementMembershipsAdded(kind)
	}
}

func (s *Service) recordFailure(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	if dErrors.HasCode(err, dErrors.CodeCapacityExceeded) && s.metrics != nil {
		s.metrics.IncrementCapacityRejections()
	}
}

// logAudit writes the audit log line and emits the event. Called inside a
// unit of work, the outbox row commits or rolls back with the change.
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
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		Subject:   attrs.ExtractString(attributes, "grove_id"),
		Action:    event,
		ActorID:   actorID,
		RequestID: requestID,
	}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}
