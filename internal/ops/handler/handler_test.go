package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"heirloom/internal/jobs"
	legacymodels "heirloom/internal/legacy/models"
	legacyservice "heirloom/internal/legacy/service"
	branchstore "heirloom/internal/legacy/store/branch"
	managerstore "heirloom/internal/legacy/store/manager"
	membershipmodels "heirloom/internal/membership/models"
	membershipservice "heirloom/internal/membership/service"
	grovestore "heirloom/internal/membership/store/grove"
	membershipstore "heirloom/internal/membership/store/membership"
	subscriptionstore "heirloom/internal/membership/store/subscription"
	personstore "heirloom/internal/person/store/person"
	"heirloom/internal/plans"
	"heirloom/internal/succession/adapters/archive"
	branchreader "heirloom/internal/succession/adapters/branch"
	successionmodels "heirloom/internal/succession/models"
	successionservice "heirloom/internal/succession/service"
	heirstore "heirloom/internal/succession/store/heir"
	id "heirloom/pkg/domain"
	"heirloom/pkg/testutil"
)

const adminToken = "ops-secret"

type emptyLegacyBody struct {
	Branches []legacymodels.Branch `json:"branches"`
}

type HandlerSuite struct {
	suite.Suite
	groves     *grovestore.InMemory
	branches   *branchstore.InMemory
	succession *successionservice.Service
	router     chi.Router
	jobRuns    int
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.groves = grovestore.NewInMemory()
	memberships := membershipservice.New(s.groves, membershipstore.NewInMemory(), subscriptionstore.NewInMemory(),
		personstore.NewInMemory(), plans.Default())

	s.branches = branchstore.NewInMemory()
	legacy := legacyservice.New(s.branches, managerstore.NewInMemory())

	var err error
	s.succession, err = successionservice.New(heirstore.NewInMemory(), branchreader.NewReader(s.branches),
		archive.NewLocal("https://heirloom.example"), nil, successionservice.WithDemoMode(true))
	s.Require().NoError(err)

	s.jobRuns = 0
	scheduler := jobs.NewScheduler(jobs.WithLogger(logger))
	scheduler.Register(jobs.Job{Name: "scan-releases", Run: func(context.Context) error {
		s.jobRuns++
		return nil
	}})
	scheduler.Register(jobs.Job{Name: "broken", Run: func(context.Context) error {
		return errors.New("boom")
	}})

	h := New(memberships, s.succession, legacy, scheduler, adminToken, logger)
	h.AddHealthCheck("store", func(context.Context) error { return nil })
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *HandlerSuite) request(method, path string, body any, withToken bool) *http.Request {
	req := testutil.NewJSONRequest(s.T(), method, path, body)
	if withToken {
		req.Header.Set("X-Admin-Token", adminToken)
	}
	return req
}

func (s *HandlerSuite) do(method, path string, body any, withToken bool) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, s.request(method, path, body, withToken))
}

func (s *HandlerSuite) newGrove(limit, count int) *membershipmodels.Grove {
	g := &membershipmodels.Grove{
		ID:             id.GroveID(uuid.New()),
		OwnerAccountID: id.AccountID(uuid.New()),
		Name:           "ops grove",
		TreeLimit:      limit,
		TreeCount:      count,
		PlanType:       "family",
	}
	s.Require().NoError(s.groves.Create(context.Background(), g))
	return g
}

func (s *HandlerSuite) TestAdminTokenRequired() {
	g := s.newGrove(10, 0)
	rec := s.do(http.MethodGet, "/admin/groves/"+g.ID.String()+"/capacity", nil, false)
	testutil.AssertStatusAndError(s.T(), rec, http.StatusForbidden, "forbidden")
}

func (s *HandlerSuite) TestHealth() {
	rec := s.do(http.MethodGet, "/healthz", nil, false)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *HandlerSuite) TestGroveRoutes() {
	g := s.newGrove(10, 4)

	s.Run("capacity", func() {
		rec := s.do(http.MethodGet, "/admin/groves/"+g.ID.String()+"/capacity", nil, true)
		s.Require().Equal(http.StatusOK, rec.Code)
		capacity := testutil.UnmarshalResponse[membershipmodels.Capacity](s.T(), rec)
		s.Equal(4, capacity.Current)
		s.Equal(6, capacity.Available)
	})

	s.Run("drift is reported then synced", func() {
		rec := s.do(http.MethodGet, "/admin/groves/"+g.ID.String()+"/tree-count", nil, true)
		s.Require().Equal(http.StatusOK, rec.Code)
		check := *testutil.UnmarshalResponse[map[string]any](s.T(), rec)
		s.Equal(false, check["valid"])

		rec = s.do(http.MethodPost, "/admin/groves/"+g.ID.String()+"/tree-count/sync", nil, true)
		s.Require().Equal(http.StatusOK, rec.Code)
		synced := *testutil.UnmarshalResponse[map[string]any](s.T(), rec)
		s.EqualValues(0, synced["tree_count"])
	})

	s.Run("upgrade suggestion", func() {
		rec := s.do(http.MethodGet, "/admin/groves/"+g.ID.String()+"/upgrade", nil, true)
		s.Require().Equal(http.StatusOK, rec.Code)
		suggestion := testutil.UnmarshalResponse[membershipmodels.UpgradeSuggestion](s.T(), rec)
		s.True(suggestion.HasUpgrade)
		s.Equal("ancestry", suggestion.Suggested.ID)
	})

	s.Run("unknown grove maps to 404", func() {
		rec := s.do(http.MethodGet, "/admin/groves/"+uuid.NewString()+"/capacity", nil, true)
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("malformed id maps to 400", func() {
		rec := s.do(http.MethodGet, "/admin/groves/not-a-uuid/capacity", nil, true)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestReleaseAndDownload() {
	ctx := context.Background()
	owner := id.AccountID(uuid.New())
	b := legacymodels.NewBranch(id.BranchID(uuid.New()), owner, time.Now())
	s.Require().NoError(s.branches.Create(ctx, b))
	heir, err := s.succession.AddSuccessor(ctx, successionservice.AddSuccessorRequest{
		BranchID: b.ID, OwnerID: owner, Contact: "heir@example.com", ReleaseCondition: successionmodels.ReleaseManual,
	})
	s.Require().NoError(err)

	s.Run("lists successors without their tokens", func() {
		rec := s.do(http.MethodGet, "/admin/branches/"+b.ID.String()+"/heirs", nil, true)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), heir.ID.String())
		s.NotContains(rec.Body.String(), heir.DownloadToken)
	})

	s.Run("listing successors requires the admin token", func() {
		rec := s.do(http.MethodGet, "/admin/branches/"+b.ID.String()+"/heirs", nil, false)
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("unreleased token is invalid", func() {
		rec := s.do(http.MethodGet, "/downloads/"+heir.DownloadToken, nil, false)
		testutil.AssertStatusAndError(s.T(), rec, http.StatusNotFound, "invalid_token")
	})

	s.Run("manual release", func() {
		rec := s.do(http.MethodPost, "/admin/heirs/"+heir.ID.String()+"/release", nil, true)
		s.Require().Equal(http.StatusOK, rec.Code)
	})

	s.Run("second release conflicts", func() {
		rec := s.do(http.MethodPost, "/admin/heirs/"+heir.ID.String()+"/release", nil, true)
		s.Equal(http.StatusConflict, rec.Code)
	})

	s.Run("released token resolves", func() {
		rec := s.do(http.MethodGet, "/downloads/"+heir.DownloadToken, nil, false)
		s.Require().Equal(http.StatusOK, rec.Code)
		body := *testutil.UnmarshalResponse[map[string]any](s.T(), rec)
		s.Equal(b.ID.String(), body["branch_id"])
	})

	s.Run("unknown token", func() {
		rec := s.do(http.MethodGet, "/downloads/"+uuid.NewString(), nil, false)
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *HandlerSuite) TestMarkLegacy() {
	ctx := context.Background()
	b := legacymodels.NewBranch(id.BranchID(uuid.New()), id.AccountID(uuid.New()), time.Now().AddDate(0, 0, -60))
	s.Require().NoError(s.branches.Create(ctx, b))
	path := "/admin/branches/" + b.ID.String() + "/legacy"

	s.Run("marks branch", func() {
		rec := s.do(http.MethodPost, path, map[string]string{
			"marked_by":  uuid.NewString(),
			"death_date": "2026-04-01",
		}, true)
		s.Require().Equal(http.StatusOK, rec.Code)
	})

	s.Run("one way", func() {
		rec := s.do(http.MethodPost, path, map[string]string{"marked_by": uuid.NewString()}, true)
		s.Equal(http.StatusConflict, rec.Code)
	})

	s.Run("bad date", func() {
		other := legacymodels.NewBranch(id.BranchID(uuid.New()), id.AccountID(uuid.New()), time.Now())
		s.Require().NoError(s.branches.Create(ctx, other))
		rec := s.do(http.MethodPost, "/admin/branches/"+other.ID.String()+"/legacy",
			map[string]string{"marked_by": uuid.NewString(), "birth_date": "01/02/1950"}, true)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("listed as empty", func() {
		rec := s.do(http.MethodGet, "/admin/branches/empty-legacy?days_old=30", nil, true)
		s.Require().Equal(http.StatusOK, rec.Code)
		body := testutil.UnmarshalResponse[emptyLegacyBody](s.T(), rec)
		s.Require().Len(body.Branches, 1)
		s.Equal(b.ID, body.Branches[0].ID)
	})

	s.Run("age is measured from the request clock", func() {
		req := s.request(http.MethodGet, "/admin/branches/empty-legacy?days_old=30", nil, true)
		req = testutil.WithNow(req, b.CreatedAt.AddDate(0, 0, 10))
		rec := testutil.DoRequest(s.router, req)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Empty(testutil.UnmarshalResponse[emptyLegacyBody](s.T(), rec).Branches)
	})
}

func (s *HandlerSuite) TestJobs() {
	s.Run("trigger known job", func() {
		rec := s.do(http.MethodPost, "/admin/jobs/scan-releases", nil, true)
		s.Equal(http.StatusOK, rec.Code)
		s.Equal(1, s.jobRuns)
	})

	s.Run("unknown job", func() {
		rec := s.do(http.MethodPost, "/admin/jobs/nope", nil, true)
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("failing job is internal", func() {
		rec := s.do(http.MethodPost, "/admin/jobs/broken", nil, true)
		s.Equal(http.StatusInternalServerError, rec.Code)
	})
}
