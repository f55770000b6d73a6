package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gmq/internal/platform/metrics"
	"gmq/pkg/platform/middleware/admin"
	"gmq/pkg/platform/middleware/metadata"
)

// NewRouter mounts the handler. Admin routes require adminToken; with an
// empty token they always answer 401.
func NewRouter(h *Handler, adminToken string, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.logger, m))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/stats", h.handleStats)
		r.Get("/transactions/recent", h.handleRecent)
		r.Get("/queues/{queue}/dead", h.handleDead)

		r.Route("/admin", func(r chi.Router) {
			r.Use(admin.RequireAdminToken(adminToken, h.logger))
			r.Post("/transactions/{id}/requeue", h.handleRequeue)
		})
	})
	return r
}

// requestLogger logs each request once it is served and records its
// latency under the matched route pattern.
func requestLogger(logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			elapsed := time.Since(start)
			if m != nil {
				m.ObserveHTTP(route, ww.Status(), elapsed.Seconds())
			}
			logger.InfoContext(r.Context(), "http request",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"route", route,
				"status", ww.Status(),
				"duration_ms", elapsed.Milliseconds(),
				"client_ip", metadata.ClientIPFromRequest(r),
			)
		})
	}
}
