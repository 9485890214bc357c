package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"heirloom/internal/legacy/metrics"
	"heirloom/internal/legacy/models"
	"heirloom/pkg/attrs"
	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
	audit "heirloom/pkg/platform/audit"
	"heirloom/pkg/platform/sentinel"
	"heirloom/pkg/platform/tx"
	"heirloom/pkg/requestcontext"
)

type BranchStore interface {
	FindByID(ctx context.Context, branchID id.BranchID) (*models.Branch, error)
	SaveLegacy(ctx context.Context, b *models.Branch) error
	ListEmptyLegacy(ctx context.Context, cutoff time.Time) ([]*models.Branch, error)
}

type ManagerStore interface {
	Create(ctx context.Context, m *models.LegacyManager) error
	ListByBranch(ctx context.Context, branchID id.BranchID) ([]*models.LegacyManager, error)
	Exists(ctx context.Context, userID id.AccountID, branchID id.BranchID) (bool, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service manages the living -> legacy transition of branches and the
// steward/heir role records over legacy branches.
type Service struct {
	branches       BranchStore
	managers       ManagerStore
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

// WithTxRunner makes each write and its audit event one unit of work.
func WithTxRunner(runner tx.Runner) Option {
	return func(s *Service) {
		if runner != nil {
			s.tx = runner
		}
	}
}

func New(branches BranchStore, managers ManagerStore, opts ...Option) *Service {
	s := &Service{
		branches: branches,
		managers: managers,
		tx:       tx.NewLockingRunner(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MarkAsLegacyRequest carries the input for MarkAsLegacy. Dates and proof
// URL are optional.
type MarkAsLegacyRequest struct {
	BranchID  id.BranchID
	MarkedBy  id.AccountID
	BirthDate *time.Time
	DeathDate *time.Time
	ProofURL  string
}

// MarkAsLegacy transitions a living branch to legacy. A branch that is
// already legacy fails with Conflict.
func (s *Service) MarkAsLegacy(ctx context.Context, req MarkAsLegacyRequest) (*models.Branch, error) {
	var b *models.Branch
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		b, err = s.findBranch(ctx, req.BranchID)
		if err != nil {
			return err
		}
		if b.Type == models.BranchLegacy {
			return alreadyLegacy()
		}
		mark := models.LegacyMark{
			MarkedBy:  req.MarkedBy,
			BirthDate: req.BirthDate,
			DeathDate: req.DeathDate,
			ProofURL:  req.ProofURL,
		}
		if err := b.MarkLegacy(mark, requestcontext.Now(ctx)); err != nil {
			return dErrors.New(dErrors.CodeValidation, dErrors.Message(err))
		}
		if err := s.branches.SaveLegacy(ctx, b); err != nil {
			switch {
			case errors.Is(err, sentinel.ErrInvalidState):
				return alreadyLegacy()
			case errors.Is(err, sentinel.ErrNotFound):
				return branchNotFound()
			default:
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark branch legacy")
			}
		}
		return s.logAudit(ctx, string(audit.EventBranchMarkedLegacy),
			"branch_id", b.ID.String(),
			"marked_by", req.MarkedBy.String(),
		)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementBranchesMarkedLegacy()
	}
	return b, nil
}

// IsLegacyBranch reports whether the branch type or its companion status
// marks it as legacy.
func (s *Service) IsLegacyBranch(ctx context.Context, branchID id.BranchID) (bool, error) {
	b, err := s.findBranch(ctx, branchID)
	if err != nil {
		return false, err
	}
	return b.IsLegacy(), nil
}

// GetEmptyLegacyBranches lists legacy branches at least daysOld days old
// that have no active entries.
func (s *Service) GetEmptyLegacyBranches(ctx context.Context, daysOld int) ([]*models.Branch, error) {
	if daysOld < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "days old cannot be negative")
	}
	cutoff := requestcontext.Now(ctx).AddDate(0, 0, -daysOld)
	list, err := s.branches.ListEmptyLegacy(ctx, cutoff)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list empty legacy branches")
	}
	if s.metrics != nil {
		s.metrics.SetEmptyLegacyBranches(len(list))
	}
	return list, nil
}

// AddLegacyManager grants userID a role over the branch. A second grant for
// the same (branch, user) pair fails with Conflict.
func (s *Service) AddLegacyManager(ctx context.Context, branchID id.BranchID, userID id.AccountID, role models.ManagerRole) (*models.LegacyManager, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "user id is required")
	}
	if _, err := models.ParseManagerRole(string(role)); err != nil {
		return nil, err
	}
	if _, err := s.findBranch(ctx, branchID); err != nil {
		return nil, err
	}

	m := &models.LegacyManager{
		ID:        id.LegacyManagerID(uuid.New()),
		BranchID:  branchID,
		UserID:    userID,
		Role:      role,
		CreatedAt: requestcontext.Now(ctx),
	}
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.managers.Create(ctx, m); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "user already manages this branch")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save legacy manager")
		}
		return s.logAudit(ctx, string(audit.EventLegacyManagerAdded),
			"branch_id", branchID.String(),
			"user_id", userID.String(),
			"role", string(role),
		)
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncrementLegacyManagersAdded(string(role))
	}
	return m, nil
}

func (s *Service) GetLegacyManagers(ctx context.Context, branchID id.BranchID) ([]*models.LegacyManager, error) {
	list, err := s.managers.ListByBranch(ctx, branchID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list legacy managers")
	}
	return list, nil
}

func (s *Service) IsLegacyManager(ctx context.Context, userID id.AccountID, branchID id.BranchID) (bool, error) {
	ok, err := s.managers.Exists(ctx, userID, branchID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check legacy manager")
	}
	return ok, nil
}

// ReportEmptyLegacy runs GetEmptyLegacyBranches and records one audit event
// per branch found.
func (s *Service) ReportEmptyLegacy(ctx context.Context, daysOld int) ([]*models.Branch, error) {
	list, err := s.GetEmptyLegacyBranches(ctx, daysOld)
	if err != nil {
		return nil, err
	}
	for _, b := range list {
		if err := s.logAudit(ctx, string(audit.EventEmptyLegacyReported),
			"branch_id", b.ID.String(),
			"owner_id", b.OwnerID.String(),
		); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (s *Service) findBranch(ctx context.Context, branchID id.BranchID) (*models.Branch, error) {
	b, err := s.branches.FindByID(ctx, branchID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, branchNotFound()
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load branch")
	}
	return b, nil
}

func branchNotFound() error {
	return dErrors.New(dErrors.CodeNotFound, "branch not found")
}

func alreadyLegacy() error {
	return dErrors.New(dErrors.CodeConflict, "branch is already legacy")
}

// logAudit logs the event and emits it. A compliance event that cannot be
// persisted fails the surrounding unit of work.
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
		Subject:   attrs.ExtractString(attributes, "branch_id"),
		Action:    event,
		ActorID:   actorID,
		RequestID: requestID,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}
