package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"custodia/pkg/requestcontext"
)

// RequireAdminToken gates the admin API behind a shared token. The token is
// compared in constant time to prevent timing attacks. Actor identity is taken
// from X-Admin-Actor and stored in the context for audit attribution.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-Admin-Token")
			if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", requestcontext.RequestID(ctx),
				)
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"admin token required"}`))
				return
			}

			ctx := requestcontext.WithActorID(r.Context(), r.Header.Get("X-Admin-Actor"))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
