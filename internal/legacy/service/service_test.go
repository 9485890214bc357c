package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"heirloom/internal/legacy/models"
	branchstore "heirloom/internal/legacy/store/branch"
	managerstore "heirloom/internal/legacy/store/manager"
	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
	audit "heirloom/pkg/platform/audit"
	"heirloom/pkg/platform/audit/publishers/compliance"
	auditmemory "heirloom/pkg/platform/audit/store/memory"
	"heirloom/pkg/requestcontext"
)

type unavailableAuditStore struct{}

func (unavailableAuditStore) Append(context.Context, audit.Event) error {
	return errors.New("audit store unavailable")
}

type LegacyServiceSuite struct {
	suite.Suite
	ctx        context.Context
	now        time.Time
	branches   *branchstore.InMemory
	managers   *managerstore.InMemory
	auditStore *auditmemory.InMemoryStore
	service    *Service
}

func TestLegacyServiceSuite(t *testing.T) {
	suite.Run(t, new(LegacyServiceSuite))
}

func (s *LegacyServiceSuite) SetupTest() {
	s.now = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.branches = branchstore.NewInMemory()
	s.managers = managerstore.NewInMemory()
	s.auditStore = auditmemory.NewInMemoryStore()
	s.service = New(s.branches, s.managers, WithAuditPublisher(compliance.New(s.auditStore)))
}

func (s *LegacyServiceSuite) newBranch(createdAt time.Time) *models.Branch {
	b := models.NewBranch(id.BranchID(uuid.New()), id.AccountID(uuid.New()), createdAt)
	s.Require().NoError(s.branches.Create(s.ctx, b))
	return b
}

func (s *LegacyServiceSuite) TestMarkAsLegacy() {
	s.Run("records marker, proof and entry timestamp", func() {
		b := s.newBranch(s.now.AddDate(0, -1, 0))
		marker := id.AccountID(uuid.New())
		death := time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC)

		got, err := s.service.MarkAsLegacy(s.ctx, MarkAsLegacyRequest{
			BranchID:  b.ID,
			MarkedBy:  marker,
			DeathDate: &death,
			ProofURL:  "https://example.com/certificate.pdf",
		})
		s.Require().NoError(err)
		s.Equal(models.BranchLegacy, got.Type)

		stored, err := s.branches.FindByID(s.ctx, b.ID)
		s.Require().NoError(err)
		s.Equal(models.BranchLegacy, stored.Type)
		s.Require().NotNil(stored.LegacyMarkedBy)
		s.Equal(marker, *stored.LegacyMarkedBy)
		s.Equal("https://example.com/certificate.pdf", stored.LegacyProofURL)
		s.Require().NotNil(stored.LegacyEnteredAt)
		s.True(stored.LegacyEnteredAt.Equal(s.now))
		s.Require().NotNil(stored.DeathDate)
		s.True(stored.DeathDate.Equal(death))

		events, err := s.auditStore.ListBySubject(s.ctx, b.ID.String())
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(string(audit.EventBranchMarkedLegacy), events[0].Action)
	})

	s.Run("transition is one way", func() {
		b := s.newBranch(s.now)
		req := MarkAsLegacyRequest{BranchID: b.ID, MarkedBy: id.AccountID(uuid.New())}
		_, err := s.service.MarkAsLegacy(s.ctx, req)
		s.Require().NoError(err)

		_, err = s.service.MarkAsLegacy(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("concurrent marks let exactly one through", func() {
		b := s.newBranch(s.now)
		var wg sync.WaitGroup
		var successes atomic.Int32
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.service.MarkAsLegacy(s.ctx, MarkAsLegacyRequest{BranchID: b.ID, MarkedBy: id.AccountID(uuid.New())})
				if err == nil {
					successes.Add(1)
				}
			}()
		}
		wg.Wait()
		s.Equal(int32(1), successes.Load())
	})

	s.Run("unknown branch", func() {
		_, err := s.service.MarkAsLegacy(s.ctx, MarkAsLegacyRequest{BranchID: id.BranchID(uuid.New()), MarkedBy: id.AccountID(uuid.New())})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("rejects inverted dates", func() {
		b := s.newBranch(s.now)
		birth := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
		death := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
		_, err := s.service.MarkAsLegacy(s.ctx, MarkAsLegacyRequest{
			BranchID: b.ID, MarkedBy: id.AccountID(uuid.New()), BirthDate: &birth, DeathDate: &death,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		legacy, err := s.service.IsLegacyBranch(s.ctx, b.ID)
		s.Require().NoError(err)
		s.False(legacy)
	})
}

func (s *LegacyServiceSuite) TestIsLegacyBranch() {
	s.Run("living branch", func() {
		b := s.newBranch(s.now)
		legacy, err := s.service.IsLegacyBranch(s.ctx, b.ID)
		s.Require().NoError(err)
		s.False(legacy)
	})

	s.Run("memorial status counts as legacy", func() {
		b := models.NewBranch(id.BranchID(uuid.New()), id.AccountID(uuid.New()), s.now)
		b.Status = models.BranchMemorial
		s.Require().NoError(s.branches.Create(s.ctx, b))

		legacy, err := s.service.IsLegacyBranch(s.ctx, b.ID)
		s.Require().NoError(err)
		s.True(legacy)
	})

	s.Run("unknown branch", func() {
		_, err := s.service.IsLegacyBranch(s.ctx, id.BranchID(uuid.New()))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *LegacyServiceSuite) TestGetEmptyLegacyBranches() {
	old := s.newBranch(s.now.AddDate(0, 0, -45))
	recent := s.newBranch(s.now.AddDate(0, 0, -5))
	populated := s.newBranch(s.now.AddDate(0, 0, -60))
	living := s.newBranch(s.now.AddDate(0, 0, -90))
	for _, b := range []*models.Branch{old, recent, populated} {
		_, err := s.service.MarkAsLegacy(s.ctx, MarkAsLegacyRequest{BranchID: b.ID, MarkedBy: id.AccountID(uuid.New())})
		s.Require().NoError(err)
	}
	s.Require().NoError(s.branches.PutEntry(s.ctx, populated.ID, uuid.NewString(), "active"))
	s.Require().NoError(s.branches.PutEntry(s.ctx, old.ID, uuid.NewString(), "deleted"))

	s.Run("only old legacy branches without active entries", func() {
		list, err := s.service.GetEmptyLegacyBranches(s.ctx, 30)
		s.Require().NoError(err)
		s.Require().Len(list, 1)
		s.Equal(old.ID, list[0].ID)
	})

	s.Run("zero days includes recent branches", func() {
		list, err := s.service.GetEmptyLegacyBranches(s.ctx, 0)
		s.Require().NoError(err)
		s.Len(list, 2)
		for _, b := range list {
			s.NotEqual(living.ID, b.ID)
		}
	})

	s.Run("negative days rejected", func() {
		_, err := s.service.GetEmptyLegacyBranches(s.ctx, -1)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("report audits each branch", func() {
		s.auditStore.Clear()
		list, err := s.service.ReportEmptyLegacy(s.ctx, 30)
		s.Require().NoError(err)
		s.Len(list, 1)
		events, err := s.auditStore.ListBySubject(s.ctx, old.ID.String())
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(string(audit.EventEmptyLegacyReported), events[0].Action)
	})
}

func (s *LegacyServiceSuite) TestLegacyManagers() {
	b := s.newBranch(s.now)
	steward := id.AccountID(uuid.New())

	s.Run("adds a steward", func() {
		m, err := s.service.AddLegacyManager(s.ctx, b.ID, steward, models.RoleSteward)
		s.Require().NoError(err)
		s.Equal(models.RoleSteward, m.Role)

		ok, err := s.service.IsLegacyManager(s.ctx, steward, b.ID)
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("one record per branch and user", func() {
		_, err := s.service.AddLegacyManager(s.ctx, b.ID, steward, models.RoleHeir)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		list, err := s.service.GetLegacyManagers(s.ctx, b.ID)
		s.Require().NoError(err)
		s.Len(list, 1)
	})

	s.Run("same user may manage another branch", func() {
		other := s.newBranch(s.now)
		_, err := s.service.AddLegacyManager(s.ctx, other.ID, steward, models.RoleHeir)
		s.Require().NoError(err)
	})

	s.Run("non manager", func() {
		ok, err := s.service.IsLegacyManager(s.ctx, id.AccountID(uuid.New()), b.ID)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("invalid role", func() {
		_, err := s.service.AddLegacyManager(s.ctx, b.ID, id.AccountID(uuid.New()), models.ManagerRole("owner"))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unknown branch", func() {
		_, err := s.service.AddLegacyManager(s.ctx, id.BranchID(uuid.New()), id.AccountID(uuid.New()), models.RoleHeir)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *LegacyServiceSuite) TestComplianceEventsMustBeRecorded() {
	svc := New(s.branches, s.managers, WithAuditPublisher(compliance.New(unavailableAuditStore{})))

	s.Run("mark as legacy fails when its event cannot be recorded", func() {
		b := s.newBranch(s.now)
		_, err := svc.MarkAsLegacy(s.ctx, MarkAsLegacyRequest{BranchID: b.ID, MarkedBy: id.AccountID(uuid.New())})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("adding a manager fails when its event cannot be recorded", func() {
		b := s.newBranch(s.now)
		_, err := svc.AddLegacyManager(s.ctx, b.ID, id.AccountID(uuid.New()), models.RoleSteward)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("empty legacy report is best effort", func() {
		b := s.newBranch(s.now.AddDate(0, 0, -60))
		_, err := s.service.MarkAsLegacy(s.ctx, MarkAsLegacyRequest{BranchID: b.ID, MarkedBy: id.AccountID(uuid.New())})
		s.Require().NoError(err)

		_, err = svc.ReportEmptyLegacy(s.ctx, 30)
		s.NoError(err)
	})
}
