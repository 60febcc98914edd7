// Package requesttime provides middleware for request-scoped time.
// All operations within a single HTTP request use the same "now" timestamp,
// ensuring consistency in audit events, derived compliance status, and
// time-sensitive store queries.
package requesttime

import (
	"net/http"

	"custodia/pkg/clock"
	"custodia/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request
// and stores it in the context for consistent time references throughout the request.
func Middleware(clk clock.Clock) func(http.Handler) http.Handler {
	if clk == nil {
		clk = clock.System
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), clk())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
