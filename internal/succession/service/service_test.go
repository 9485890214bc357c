package service

//go:generate mockgen -source=../ports/ports.go -destination=mocks/mocks.go -package=mocks ArchiveGenerator,Notifier,BranchReader

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"heirloom/internal/succession/models"
	"heirloom/internal/succession/service/mocks"
	heirstore "heirloom/internal/succession/store/heir"
	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
	audit "heirloom/pkg/platform/audit"
	"heirloom/pkg/platform/audit/publishers/compliance"
	auditmemory "heirloom/pkg/platform/audit/store/memory"
	"heirloom/pkg/platform/sentinel"
	"heirloom/pkg/requestcontext"
)

// =============================================================================
// Succession Service Test Suite
// =============================================================================
// The heir store is the real in-memory store so the Pending -> Released
// transition is observed as stored state. Collaborators are mocked so each
// test states exactly which archives and notifications it expects.

type unavailableAuditStore struct{}

func (unavailableAuditStore) Append(context.Context, audit.Event) error {
	return errors.New("audit store unavailable")
}

type SuccessionServiceSuite struct {
	suite.Suite
	ctx        context.Context
	now        time.Time
	ctrl       *gomock.Controller
	branches   *mocks.MockBranchReader
	archives   *mocks.MockArchiveGenerator
	notifier   *mocks.MockNotifier
	heirs      *heirstore.InMemory
	auditStore *auditmemory.InMemoryStore
	service    *Service
	owner      id.AccountID
	branchID   id.BranchID
}

func TestSuccessionServiceSuite(t *testing.T) {
	suite.Run(t, new(SuccessionServiceSuite))
}

func (s *SuccessionServiceSuite) SetupTest() {
	s.now = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.ctrl = gomock.NewController(s.T())
	s.branches = mocks.NewMockBranchReader(s.ctrl)
	s.archives = mocks.NewMockArchiveGenerator(s.ctrl)
	s.notifier = mocks.NewMockNotifier(s.ctrl)
	s.heirs = heirstore.NewInMemory()
	s.auditStore = auditmemory.NewInMemoryStore()
	s.owner = id.AccountID(uuid.New())
	s.branchID = id.BranchID(uuid.New())

	svc, err := New(s.heirs, s.branches, s.archives, s.notifier,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(compliance.New(s.auditStore)),
	)
	s.Require().NoError(err)
	s.service = svc
}

func (s *SuccessionServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

// seedHeir stores a Pending heir directly, bypassing AddSuccessor.
func (s *SuccessionServiceSuite) seedHeir(condition models.ReleaseCondition, releaseDate *time.Time) *models.Heir {
	h, err := models.NewHeir(id.HeirID(uuid.New()), id.BranchID(uuid.New()), "heir@example.com", condition, releaseDate, uuid.NewString(), s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.heirs.Create(s.ctx, h))
	return h
}

func (s *SuccessionServiceSuite) stored(heirID id.HeirID) *models.Heir {
	h, err := s.heirs.FindByID(s.ctx, heirID)
	s.Require().NoError(err)
	return h
}

func (s *SuccessionServiceSuite) TestNew() {
	s.Run("nil heir store returns error", func() {
		_, err := New(nil, s.branches, s.archives, s.notifier)
		s.ErrorContains(err, "heir store is required")
	})

	s.Run("nil archive generator returns error", func() {
		_, err := New(s.heirs, s.branches, nil, s.notifier)
		s.ErrorContains(err, "archive generator is required")
	})

	s.Run("notifier may be omitted only in demo mode", func() {
		_, err := New(s.heirs, s.branches, s.archives, nil)
		s.Error(err)

		svc, err := New(s.heirs, s.branches, s.archives, nil, WithDemoMode(true))
		s.NoError(err)
		s.True(svc.demoMode)
	})
}

func (s *SuccessionServiceSuite) TestAddSuccessor() {
	s.Run("owner designates a pending heir with a token", func() {
		s.branches.EXPECT().BranchOwner(gomock.Any(), s.branchID).Return(s.owner, nil)
		releaseDate := s.now.Add(48 * time.Hour)

		h, err := s.service.AddSuccessor(s.ctx, AddSuccessorRequest{
			BranchID:         s.branchID,
			OwnerID:          s.owner,
			Contact:          "daughter@example.com",
			ReleaseCondition: models.ReleaseAfterDate,
			ReleaseDate:      &releaseDate,
		})
		s.Require().NoError(err)
		s.False(h.Notified)
		s.NotEmpty(h.DownloadToken)
		s.Equal(s.now, h.CreatedAt)

		events, err := s.auditStore.ListBySubject(s.ctx, h.ID.String())
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal("successor_added", events[0].Action)
	})

	s.Run("non-owner is denied", func() {
		s.branches.EXPECT().BranchOwner(gomock.Any(), s.branchID).Return(s.owner, nil)

		_, err := s.service.AddSuccessor(s.ctx, AddSuccessorRequest{
			BranchID:         s.branchID,
			OwnerID:          id.AccountID(uuid.New()),
			Contact:          "stranger@example.com",
			ReleaseCondition: models.ReleaseManual,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeAccessDenied))
	})

	s.Run("unknown branch is not found", func() {
		s.branches.EXPECT().BranchOwner(gomock.Any(), gomock.Any()).Return(id.AccountID{}, sentinel.ErrNotFound)

		_, err := s.service.AddSuccessor(s.ctx, AddSuccessorRequest{
			BranchID:         id.BranchID(uuid.New()),
			OwnerID:          s.owner,
			Contact:          "x@example.com",
			ReleaseCondition: models.ReleaseManual,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("AFTER_DATE without a date is a validation error", func() {
		s.branches.EXPECT().BranchOwner(gomock.Any(), s.branchID).Return(s.owner, nil)

		_, err := s.service.AddSuccessor(s.ctx, AddSuccessorRequest{
			BranchID:         s.branchID,
			OwnerID:          s.owner,
			Contact:          "x@example.com",
			ReleaseCondition: models.ReleaseAfterDate,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("contact that is not an email address is a validation error", func() {
		before, err := s.service.ListSuccessors(s.ctx, s.branchID)
		s.Require().NoError(err)
		s.branches.EXPECT().BranchOwner(gomock.Any(), s.branchID).Return(s.owner, nil)

		_, err = s.service.AddSuccessor(s.ctx, AddSuccessorRequest{
			BranchID:         s.branchID,
			OwnerID:          s.owner,
			Contact:          "call my sister",
			ReleaseCondition: models.ReleaseManual,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		after, err := s.service.ListSuccessors(s.ctx, s.branchID)
		s.Require().NoError(err)
		s.Len(after, len(before))
	})
}

func (s *SuccessionServiceSuite) TestRelease() {
	s.Run("releases once and rejects every later call without side effects", func() {
		h := s.seedHeir(models.ReleaseManual, nil)
		archive := &models.Archive{Handle: "arc-1"}
		s.archives.EXPECT().Generate(gomock.Any(), h.BranchID).Return(archive, nil).Times(1)
		s.notifier.EXPECT().SendRelease(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, n models.ReleaseNotification) error {
				s.Equal(h.DownloadToken, n.DownloadToken)
				s.Equal("arc-1", n.ArchiveHandle)
				s.Equal(h.Contact, n.Contact)
				return nil
			}).Times(1)

		outcome, err := s.service.Release(s.ctx, h.ID)
		s.Require().NoError(err)
		s.Equal(h.DownloadToken, outcome.DownloadToken)
		s.True(outcome.NotificationSent)

		stored := s.stored(h.ID)
		s.True(stored.Notified)
		s.Equal(s.now, *stored.NotifiedAt)

		later := requestcontext.WithTime(s.ctx, s.now.Add(time.Hour))
		_, err = s.service.Release(later, h.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyReleased))
		s.Equal(s.now, *s.stored(h.ID).NotifiedAt)
	})

	s.Run("unknown heir is not found", func() {
		_, err := s.service.Release(s.ctx, id.HeirID(uuid.New()))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("archive failure leaves the heir pending", func() {
		h := s.seedHeir(models.ReleaseAfterDeath, nil)
		s.archives.EXPECT().Generate(gomock.Any(), h.BranchID).Return(nil, errors.New("export service down"))

		_, err := s.service.Release(s.ctx, h.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		s.False(s.stored(h.ID).Notified)
	})

	s.Run("notification failure does not undo the release", func() {
		h := s.seedHeir(models.ReleaseManual, nil)
		s.archives.EXPECT().Generate(gomock.Any(), h.BranchID).Return(&models.Archive{Handle: "arc-2"}, nil)
		s.notifier.EXPECT().SendRelease(gomock.Any(), gomock.Any()).Return(errors.New("broker unavailable"))

		outcome, err := s.service.Release(s.ctx, h.ID)
		s.Require().NoError(err)
		s.False(outcome.NotificationSent)
		s.True(s.stored(h.ID).Notified)
	})
}

func (s *SuccessionServiceSuite) TestReleaseInDemoModeSkipsNotification() {
	svc, err := New(s.heirs, s.branches, s.archives, s.notifier, WithDemoMode(true))
	s.Require().NoError(err)
	h := s.seedHeir(models.ReleaseManual, nil)
	s.archives.EXPECT().Generate(gomock.Any(), h.BranchID).Return(&models.Archive{Handle: "demo"}, nil)
	s.notifier.EXPECT().SendRelease(gomock.Any(), gomock.Any()).Times(0)

	outcome, err := svc.Release(s.ctx, h.ID)
	s.Require().NoError(err)
	s.False(outcome.NotificationSent)
	s.True(s.stored(h.ID).Notified)
}

func (s *SuccessionServiceSuite) TestScanDueReleases() {
	s.Run("a due heir is released once and drops out of later scans", func() {
		yesterday := s.now.Add(-24 * time.Hour)
		h := s.seedHeir(models.ReleaseAfterDate, &yesterday)
		s.archives.EXPECT().Generate(gomock.Any(), h.BranchID).Return(&models.Archive{Handle: "arc"}, nil).Times(1)
		s.notifier.EXPECT().SendRelease(gomock.Any(), gomock.Any()).Return(nil).Times(1)

		results, err := s.service.ScanDueReleases(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(results, 1)
		s.Equal(h.ID, results[0].HeirID)
		s.True(results[0].Success)
		s.True(s.stored(h.ID).Notified)

		results, err = s.service.ScanDueReleases(s.ctx)
		s.Require().NoError(err)
		s.Empty(results)
	})

	s.Run("one failing archive does not stop the rest", func() {
		older := s.now.Add(-72 * time.Hour)
		newer := s.now.Add(-24 * time.Hour)
		first := s.seedHeir(models.ReleaseAfterDate, &older)
		second := s.seedHeir(models.ReleaseAfterDate, &newer)

		gomock.InOrder(
			s.archives.EXPECT().Generate(gomock.Any(), first.BranchID).Return(nil, errors.New("timeout")),
			s.archives.EXPECT().Generate(gomock.Any(), second.BranchID).Return(&models.Archive{Handle: "ok"}, nil),
		)
		s.notifier.EXPECT().SendRelease(gomock.Any(), gomock.Any()).Return(nil).Times(1)

		results, err := s.service.ScanDueReleases(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(results, 2)
		s.Equal(first.ID, results[0].HeirID)
		s.False(results[0].Success)
		s.NotEmpty(results[0].Error)
		s.Equal(second.ID, results[1].HeirID)
		s.True(results[1].Success)

		s.False(s.stored(first.ID).Notified)
		s.True(s.stored(second.ID).Notified)
	})
}

func (s *SuccessionServiceSuite) TestScanIgnoresFutureAndUndatedConditions() {
	tomorrow := s.now.Add(24 * time.Hour)
	yesterday := s.now.Add(-24 * time.Hour)
	s.seedHeir(models.ReleaseAfterDate, &tomorrow)
	s.seedHeir(models.ReleaseAfterDeath, &yesterday)
	s.seedHeir(models.ReleaseManual, nil)

	results, err := s.service.ScanDueReleases(s.ctx)
	s.Require().NoError(err)
	s.Empty(results)
}

func (s *SuccessionServiceSuite) TestResolveDownload() {
	s.Run("released token regenerates the archive on every call", func() {
		h := s.seedHeir(models.ReleaseManual, nil)
		s.Require().NoError(s.heirs.MarkReleased(s.ctx, h.ID, s.now))
		s.archives.EXPECT().Generate(gomock.Any(), h.BranchID).Return(&models.Archive{Handle: "fresh"}, nil).Times(2)

		for i := 0; i < 2; i++ {
			download, err := s.service.ResolveDownload(s.ctx, h.DownloadToken)
			s.Require().NoError(err)
			s.Equal(h.BranchID, download.BranchID)
			s.Equal("fresh", download.Archive.Handle)
		}
	})

	s.Run("pending heir token is invalid", func() {
		h := s.seedHeir(models.ReleaseManual, nil)
		_, err := s.service.ResolveDownload(s.ctx, h.DownloadToken)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidToken))
	})

	s.Run("unknown token is invalid", func() {
		_, err := s.service.ResolveDownload(s.ctx, "not-a-token")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidToken))

		_, err = s.service.ResolveDownload(s.ctx, "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidToken))
	})
}

func (s *SuccessionServiceSuite) TestComplianceEventsMustBeRecorded() {
	svc, err := New(s.heirs, s.branches, s.archives, s.notifier,
		WithAuditPublisher(compliance.New(unavailableAuditStore{})),
	)
	s.Require().NoError(err)

	s.Run("add successor fails when its event cannot be recorded", func() {
		s.branches.EXPECT().BranchOwner(gomock.Any(), s.branchID).Return(s.owner, nil)

		_, err := svc.AddSuccessor(s.ctx, AddSuccessorRequest{
			BranchID:         s.branchID,
			OwnerID:          s.owner,
			Contact:          "son@example.com",
			ReleaseCondition: models.ReleaseManual,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("release fails before notifying when its event cannot be recorded", func() {
		h := s.seedHeir(models.ReleaseManual, nil)
		s.archives.EXPECT().Generate(gomock.Any(), h.BranchID).Return(&models.Archive{Handle: "arc-3"}, nil)
		s.notifier.EXPECT().SendRelease(gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.Release(s.ctx, h.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("download is refused when it cannot be recorded", func() {
		h := s.seedHeir(models.ReleaseManual, nil)
		s.Require().NoError(s.heirs.MarkReleased(s.ctx, h.ID, s.now))
		s.archives.EXPECT().Generate(gomock.Any(), h.BranchID).Return(&models.Archive{Handle: "arc-4"}, nil)

		_, err := svc.ResolveDownload(s.ctx, h.DownloadToken)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}
