// Package handler serves heirloom's operator surface: health and metrics,
// admin routes over the domain services, and public download resolution.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	legacymodels "heirloom/internal/legacy/models"
	legacyservice "heirloom/internal/legacy/service"
	membershipmodels "heirloom/internal/membership/models"
	successionmodels "heirloom/internal/succession/models"
	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
	"heirloom/pkg/platform/httputil"
	"heirloom/pkg/platform/middleware/admin"
	"heirloom/pkg/requestcontext"
)

type MembershipService interface {
	GetCapacity(ctx context.Context, groveID id.GroveID) (membershipmodels.Capacity, error)
	InspectTreeCount(ctx context.Context, groveID id.GroveID) (membershipmodels.TreeCountCheck, error)
	SyncTreeCount(ctx context.Context, groveID id.GroveID) (int, error)
	GetSuggestedUpgrade(ctx context.Context, groveID id.GroveID) (membershipmodels.UpgradeSuggestion, error)
}

type SuccessionService interface {
	Release(ctx context.Context, heirID id.HeirID) (*successionmodels.ReleaseOutcome, error)
	ResolveDownload(ctx context.Context, token string) (*successionmodels.Download, error)
	ListSuccessors(ctx context.Context, branchID id.BranchID) ([]*successionmodels.Heir, error)
}

type LegacyService interface {
	MarkAsLegacy(ctx context.Context, req legacyservice.MarkAsLegacyRequest) (*legacymodels.Branch, error)
	GetEmptyLegacyBranches(ctx context.Context, daysOld int) ([]*legacymodels.Branch, error)
}

type JobTrigger interface {
	Trigger(ctx context.Context, name string) error
	Names() []string
}

// HealthCheck reports the state of one dependency.
type HealthCheck func(ctx context.Context) error

// Handler wires operator endpoints to the domain services.
type Handler struct {
	memberships MembershipService
	succession  SuccessionService
	legacy      LegacyService
	jobs        JobTrigger
	checks      map[string]HealthCheck
	adminToken  string
	logger      *slog.Logger
}

func New(memberships MembershipService, succession SuccessionService, legacy LegacyService, jobs JobTrigger, adminToken string, logger *slog.Logger) *Handler {
	return &Handler{
		memberships: memberships,
		succession:  succession,
		legacy:      legacy,
		jobs:        jobs,
		checks:      make(map[string]HealthCheck),
		adminToken:  adminToken,
		logger:      logger,
	}
}

// AddHealthCheck registers a dependency checked by /healthz.
func (h *Handler) AddHealthCheck(name string, check HealthCheck) {
	h.checks[name] = check
}

// Register mounts every route on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.HandleHealth)
	r.Get("/downloads/{token}", h.HandleDownload)

	r.Route("/admin", func(r chi.Router) {
		r.Use(admin.RequireAdminToken(h.adminToken, h.logger))

		r.Get("/groves/{groveID}/capacity", h.HandleCapacity)
		r.Get("/groves/{groveID}/tree-count", h.HandleInspectTreeCount)
		r.Post("/groves/{groveID}/tree-count/sync", h.HandleSyncTreeCount)
		r.Get("/groves/{groveID}/upgrade", h.HandleSuggestedUpgrade)

		r.Post("/heirs/{heirID}/release", h.HandleRelease)
		r.Get("/branches/{branchID}/heirs", h.HandleListSuccessors)

		r.Post("/branches/{branchID}/legacy", h.HandleMarkLegacy)
		r.Get("/branches/empty-legacy", h.HandleEmptyLegacy)

		r.Get("/jobs", h.HandleListJobs)
		r.Post("/jobs/{name}", h.HandleTriggerJob)
	})
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}
	httputil.WriteJSON(w, status, map[string]any{"status": http.StatusText(status), "checks": results})
}

// HandleDownload resolves a successor's download token. Unknown and
// unreleased tokens are indistinguishable to the caller.
func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	download, err := h.succession.ResolveDownload(ctx, chi.URLParam(r, "token"))
	if err != nil {
		h.fail(w, r, "download resolution failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, download)
}

func (h *Handler) HandleCapacity(w http.ResponseWriter, r *http.Request) {
	groveID, ok := h.groveID(w, r)
	if !ok {
		return
	}
	capacity, err := h.memberships.GetCapacity(r.Context(), groveID)
	if err != nil {
		h.fail(w, r, "capacity lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, capacity)
}

func (h *Handler) HandleInspectTreeCount(w http.ResponseWriter, r *http.Request) {
	groveID, ok := h.groveID(w, r)
	if !ok {
		return
	}
	check, err := h.memberships.InspectTreeCount(r.Context(), groveID)
	if err != nil {
		h.fail(w, r, "tree count inspection failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, treeCountResponse{TreeCountCheck: check, InSync: check.Valid()})
}

func (h *Handler) HandleSyncTreeCount(w http.ResponseWriter, r *http.Request) {
	groveID, ok := h.groveID(w, r)
	if !ok {
		return
	}
	count, err := h.memberships.SyncTreeCount(r.Context(), groveID)
	if err != nil {
		h.fail(w, r, "tree count sync failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"grove_id": groveID, "tree_count": count})
}

func (h *Handler) HandleSuggestedUpgrade(w http.ResponseWriter, r *http.Request) {
	groveID, ok := h.groveID(w, r)
	if !ok {
		return
	}
	suggestion, err := h.memberships.GetSuggestedUpgrade(r.Context(), groveID)
	if err != nil {
		h.fail(w, r, "upgrade suggestion failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, suggestion)
}

// HandleRelease triggers a release by hand, for AFTER_DEATH and MANUAL heirs.
func (h *Handler) HandleRelease(w http.ResponseWriter, r *http.Request) {
	heirID, err := id.ParseHeirID(chi.URLParam(r, "heirID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	outcome, err := h.succession.Release(r.Context(), heirID)
	if err != nil {
		h.fail(w, r, "manual release failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, outcome)
}

// HandleListSuccessors lists a branch's heirs. Download tokens are never
// serialised.
func (h *Handler) HandleListSuccessors(w http.ResponseWriter, r *http.Request) {
	branchID, err := id.ParseBranchID(chi.URLParam(r, "branchID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	heirs, err := h.succession.ListSuccessors(r.Context(), branchID)
	if err != nil {
		h.fail(w, r, "list successors failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"branch_id": branchID, "heirs": heirs})
}

func (h *Handler) HandleMarkLegacy(w http.ResponseWriter, r *http.Request) {
	branchID, err := id.ParseBranchID(chi.URLParam(r, "branchID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req markLegacyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	domainReq, err := req.toDomain(branchID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	branch, err := h.legacy.MarkAsLegacy(r.Context(), domainReq)
	if err != nil {
		h.fail(w, r, "mark legacy failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, branch)
}

func (h *Handler) HandleEmptyLegacy(w http.ResponseWriter, r *http.Request) {
	daysOld, err := parseDaysOld(r.URL.Query().Get("days_old"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	branches, err := h.legacy.GetEmptyLegacyBranches(r.Context(), daysOld)
	if err != nil {
		h.fail(w, r, "empty legacy lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"days_old": daysOld, "branches": branches})
}

func (h *Handler) HandleListJobs(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"jobs": h.jobs.Names()})
}

func (h *Handler) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	known := false
	for _, n := range h.jobs.Names() {
		if n == name {
			known = true
			break
		}
	}
	if !known {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "unknown job"))
		return
	}
	if err := h.jobs.Trigger(r.Context(), name); err != nil {
		h.fail(w, r, "job run failed", dErrors.Wrap(err, dErrors.CodeInternal, "job run failed"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"job": name, "status": "completed"})
}

func (h *Handler) groveID(w http.ResponseWriter, r *http.Request) (id.GroveID, bool) {
	groveID, err := id.ParseGroveID(chi.URLParam(r, "groveID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.GroveID{}, false
	}
	return groveID, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err)
	} else {
		h.logger.InfoContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "code", string(dErrors.CodeOf(err)))
	}
	httputil.WriteError(w, err)
}
