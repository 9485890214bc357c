package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"heirloom/internal/platform/metrics"
	"heirloom/internal/platform/middleware"
	"heirloom/pkg/platform/middleware/requesttime"
)

// NewRouter mounts h behind the request middleware chain and wraps the result
// in an otelhttp server span. Span names stay generic so download tokens in
// the path never reach the tracer.
func NewRouter(h *Handler, logger *slog.Logger, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(middleware.AccessLog(logger, m))

	r.Handle("/metrics", metrics.Handler())
	h.Register(r)

	return otelhttp.NewHandler(r, "heirloom.ops")
}
