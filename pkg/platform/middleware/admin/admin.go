// Package admin guards the operator endpoints.
package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	dErrors "gmq/pkg/domain-errors"
	"gmq/pkg/platform/httputil"
	"gmq/pkg/platform/middleware/metadata"
)

// ActorHeader optionally names the operator behind a request.
const ActorHeader = "X-Admin-Actor"

// RequireAdminToken rejects requests whose X-Admin-Token does not match
// expectedToken. An empty expectedToken rejects everything.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-Admin-Token")
			if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", middleware.GetReqID(ctx),
					"client_ip", metadata.ClientIPFromRequest(r),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Actor identifies the operator for audit events: the ActorHeader when set,
// otherwise the client address.
func Actor(r *http.Request) string {
	if a := strings.TrimSpace(r.Header.Get(ActorHeader)); a != "" {
		return a
	}
	return "admin@" + metadata.ClientIPFromRequest(r)
}
