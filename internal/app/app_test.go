package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heirloom/internal/jobs"
	"heirloom/internal/platform/config"
)

// New registers promauto collectors, so the whole graph is built once per
// test binary.
func TestApp_MemoryWiring(t *testing.T) {
	cfg := config.Default()
	cfg.Server.AdminToken = "ops-secret"
	cfg.Jobs.Enabled = false

	a, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.Nil(t, a.relay, "relay needs both postgres and kafka")
	assert.ElementsMatch(t,
		[]string{jobs.ScanReleasesJob, jobs.TreeCountHealthJob, jobs.EmptyLegacyJob},
		a.Scheduler.Names())

	t.Run("healthz with no external dependencies", func(t *testing.T) {
		rec := httptest.NewRecorder()
		a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("metrics endpoint is mounted", func(t *testing.T) {
		rec := httptest.NewRecorder()
		a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("admin routes require the configured token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/jobs", nil))
		assert.Equal(t, http.StatusForbidden, rec.Code)

		req := httptest.NewRequest(http.MethodGet, "/admin/jobs", nil)
		req.Header.Set("X-Admin-Token", "ops-secret")
		rec = httptest.NewRecorder()
		a.Router().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), jobs.ScanReleasesJob)
	})

	t.Run("scan job runs against memory stores", func(t *testing.T) {
		require.NoError(t, a.Scheduler.Trigger(context.Background(), jobs.ScanReleasesJob))
	})
}

func TestApp_BadCatalogPath(t *testing.T) {
	cfg := config.Default()
	cfg.Plans.CatalogPath = "/nonexistent/plans.toml"

	_, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading plan catalog")
}
