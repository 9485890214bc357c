package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"heirloom/internal/succession/metrics"
	"heirloom/internal/succession/models"
	"heirloom/internal/succession/ports"
	"heirloom/internal/succession/token"
	"heirloom/pkg/attrs"
	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
	audit "heirloom/pkg/platform/audit"
	"heirloom/pkg/platform/sentinel"
	"heirloom/pkg/platform/tx"
	"heirloom/pkg/requestcontext"
)

type HeirStore interface {
	Create(ctx context.Context, h *models.Heir) error
	FindByID(ctx context.Context, heirID id.HeirID) (*models.Heir, error)
	FindByToken(ctx context.Context, token string) (*models.Heir, error)
	ListByBranch(ctx context.Context, branchID id.BranchID) ([]*models.Heir, error)
	ListDue(ctx context.Context, now time.Time) ([]*models.Heir, error)
	MarkReleased(ctx context.Context, heirID id.HeirID, at time.Time) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service runs the succession workflow: designating heirs, releasing a
// branch's archive to them, and resolving their download tokens.
type Service struct {
	heirs          HeirStore
	branches       ports.BranchReader
	archives       ports.ArchiveGenerator
	notifier       ports.Notifier
	tx             tx.Runner
	demoMode       bool
	newToken       func() (string, error)
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

// WithTxRunner makes each heir write and its audit event one unit of work.
func WithTxRunner(runner tx.Runner) Option {
	return func(s *Service) {
		if runner != nil {
			s.tx = runner
		}
	}
}

// WithDemoMode skips the notification hand-off on release.
func WithDemoMode(enabled bool) Option {
	return func(s *Service) {
		s.demoMode = enabled
	}
}

// WithTokenGenerator overrides the download token source.
func WithTokenGenerator(gen func() (string, error)) Option {
	return func(s *Service) {
		if gen != nil {
			s.newToken = gen
		}
	}
}

func New(heirs HeirStore, branches ports.BranchReader, archives ports.ArchiveGenerator, notifier ports.Notifier, opts ...Option) (*Service, error) {
	if heirs == nil {
		return nil, errors.New("heir store is required")
	}
	if branches == nil {
		return nil, errors.New("branch reader is required")
	}
	if archives == nil {
		return nil, errors.New("archive generator is required")
	}
	s := &Service{
		heirs:    heirs,
		branches: branches,
		archives: archives,
		notifier: notifier,
		tx:       tx.NewLockingRunner(),
		newToken: token.Generate,
		tracer:   otel.Tracer("heirloom/succession"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil && !s.demoMode {
		return nil, errors.New("notifier is required outside demo mode")
	}
	return s, nil
}

// AddSuccessorRequest carries the input for AddSuccessor.
type AddSuccessorRequest struct {
	BranchID         id.BranchID
	OwnerID          id.AccountID
	Contact          string
	ReleaseCondition models.ReleaseCondition
	ReleaseDate      *time.Time
}

// AddSuccessor designates a Pending heir for a branch the caller owns.
func (s *Service) AddSuccessor(ctx context.Context, req AddSuccessorRequest) (*models.Heir, error) {
	owner, err := s.branches.BranchOwner(ctx, req.BranchID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "branch not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load branch")
	}
	if owner != req.OwnerID {
		return nil, dErrors.New(dErrors.CodeAccessDenied, "only the branch owner can add successors")
	}

	tok, err := s.newToken()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue download token")
	}
	h, err := models.NewHeir(id.HeirID(uuid.New()), req.BranchID, req.Contact, req.ReleaseCondition, req.ReleaseDate, tok, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.Message(err))
		}
		return nil, err
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.heirs.Create(ctx, h); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save successor")
		}
		return s.logAudit(ctx, string(audit.EventSuccessorAdded),
			"heir_id", h.ID.String(),
			"branch_id", h.BranchID.String(),
			"release_condition", h.ReleaseCondition.String(),
		)
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncrementSuccessorsAdded()
	}
	return h, nil
}

// ListSuccessors returns the heirs designated for a branch.
func (s *Service) ListSuccessors(ctx context.Context, branchID id.BranchID) ([]*models.Heir, error) {
	list, err := s.heirs.ListByBranch(ctx, branchID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list successors")
	}
	return list, nil
}

// Release generates the branch archive, marks the heir Released and hands
// the download link to the notifier. A Released heir fails with
// AlreadyReleased before any archive is generated.
func (s *Service) Release(ctx context.Context, heirID id.HeirID) (*models.ReleaseOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "succession.Release",
		trace.WithAttributes(attribute.String("heir_id", heirID.String())))
	defer span.End()

	outcome, err := s.release(ctx, heirID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		s.observeRelease(err)
		return nil, err
	}
	span.SetAttributes(attribute.Bool("notification_sent", outcome.NotificationSent))
	s.observeRelease(nil)
	return outcome, nil
}

func (s *Service) release(ctx context.Context, heirID id.HeirID) (*models.ReleaseOutcome, error) {
	h, err := s.heirs.FindByID(ctx, heirID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "heir not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load heir")
	}
	if h.IsReleased() {
		return nil, alreadyReleased()
	}

	archive, err := s.generateArchive(ctx, h.BranchID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.heirs.MarkReleased(ctx, h.ID, now); err != nil {
			switch {
			case errors.Is(err, sentinel.ErrInvalidState):
				return alreadyReleased()
			case errors.Is(err, sentinel.ErrNotFound):
				return dErrors.New(dErrors.CodeNotFound, "heir not found")
			default:
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark heir released")
			}
		}
		return s.logAudit(ctx, string(audit.EventSuccessorReleased),
			"heir_id", h.ID.String(),
			"branch_id", h.BranchID.String(),
			"archive_handle", archive.Handle,
		)
	})
	if err != nil {
		return nil, err
	}

	outcome := &models.ReleaseOutcome{HeirID: h.ID, DownloadToken: h.DownloadToken, Archive: *archive}
	if !s.demoMode {
		outcome.NotificationSent = s.notify(ctx, h, archive)
	}
	return outcome, nil
}

// notify is best effort: the heir is already Released, so a failed hand-off
// is logged and counted rather than undone.
func (s *Service) notify(ctx context.Context, h *models.Heir, archive *models.Archive) bool {
	err := s.notifier.SendRelease(ctx, models.ReleaseNotification{
		HeirID:        h.ID,
		BranchID:      h.BranchID,
		Contact:       h.Contact,
		DownloadToken: h.DownloadToken,
		ArchiveHandle: archive.Handle,
	})
	if err == nil {
		return true
	}
	if s.logger != nil {
		s.logger.ErrorContext(ctx, "release notification failed",
			"heir_id", h.ID.String(),
			"error", err,
		)
	}
	if s.metrics != nil {
		s.metrics.IncrementNotificationFailures()
	}
	return false
}

// ScanDueReleases releases every pending AFTER_DATE heir whose date has
// passed. Each heir is released independently; a failure is reported in its
// result and does not stop the scan.
func (s *Service) ScanDueReleases(ctx context.Context) ([]models.ReleaseResult, error) {
	due, err := s.heirs.ListDue(ctx, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list due releases")
	}

	results := make([]models.ReleaseResult, 0, len(due))
	for _, h := range due {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		result := models.ReleaseResult{HeirID: h.ID, Success: true}
		if _, err := s.Release(ctx, h.ID); err != nil {
			result.Success = false
			result.Error = err.Error()
			if auditErr := s.logAudit(ctx, string(audit.EventReleaseFailed),
				"heir_id", h.ID.String(),
				"reason", dErrors.Message(err),
			); auditErr != nil && s.logger != nil {
				s.logger.WarnContext(ctx, "release failure not recorded", "heir_id", h.ID.String(), "error", auditErr)
			}
		}
		results = append(results, result)
	}
	return results, nil
}

// ResolveDownload exchanges a download token for a freshly generated archive.
// Unknown tokens and tokens of unreleased heirs are rejected alike.
func (s *Service) ResolveDownload(ctx context.Context, tok string) (*models.Download, error) {
	if tok == "" {
		return nil, invalidToken()
	}
	h, err := s.heirs.FindByToken(ctx, tok)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, invalidToken()
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve token")
	}
	if !h.IsReleased() {
		return nil, invalidToken()
	}

	archive, err := s.generateArchive(ctx, h.BranchID)
	if err != nil {
		return nil, err
	}

	// No record, no archive.
	if err := s.logAudit(ctx, string(audit.EventArchiveDownloaded),
		"heir_id", h.ID.String(),
		"branch_id", h.BranchID.String(),
	); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncrementDownloads()
	}
	return &models.Download{HeirID: h.ID, BranchID: h.BranchID, Archive: *archive}, nil
}

func (s *Service) generateArchive(ctx context.Context, branchID id.BranchID) (*models.Archive, error) {
	start := time.Now()
	archive, err := s.archives.Generate(ctx, branchID)
	if s.metrics != nil {
		s.metrics.ObserveArchiveGeneration(start)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate archive")
	}
	return archive, nil
}

func (s *Service) observeRelease(err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case err == nil:
		s.metrics.IncrementRelease("released")
	case dErrors.HasCode(err, dErrors.CodeAlreadyReleased):
		s.metrics.IncrementRelease("already_released")
	default:
		s.metrics.IncrementRelease("failed")
	}
}

func alreadyReleased() error {
	return dErrors.New(dErrors.CodeAlreadyReleased, "successor has already been released")
}

func invalidToken() error {
	return dErrors.New(dErrors.CodeInvalidToken, "download token is invalid or not yet released")
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
		Subject:   attrs.ExtractString(attributes, "heir_id"),
		Action:    event,
		Reason:    attrs.ExtractString(attributes, "reason"),
		ActorID:   actorID,
		RequestID: requestID,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}
