// Package httptransport assembles the admin API router. Handlers stay thin;
// all business logic lives in the service packages.
package httptransport

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	audithandler "custodia/internal/audit/handler"
	compliancehandler "custodia/internal/compliance/handler"
	platformredis "custodia/internal/platform/redis"
	"custodia/pkg/clock"
	"custodia/pkg/platform/middleware/admin"
	"custodia/pkg/platform/middleware/metadata"
	"custodia/pkg/platform/middleware/requestid"
	"custodia/pkg/platform/middleware/requesttime"
)

// Deps carries everything the router needs. Nil db/redis simply degrade the
// health report.
type Deps struct {
	Compliance *compliancehandler.Handler
	Audit      *audithandler.Handler
	AdminToken string
	Logger     *slog.Logger
	Clock      clock.Clock
	DB         *sql.DB
	Redis      *platformredis.Client
}

// NewRouter wires middleware, admin endpoints, metrics, and health checks.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(requestid.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware(deps.Clock))

	r.Get("/healthz", healthHandler(deps))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(deps.AdminToken, deps.Logger))
		deps.Compliance.Register(r)
		deps.Audit.Register(r)
	})

	return r
}

func healthHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if deps.DB != nil {
			if err := deps.DB.PingContext(ctx); err != nil {
				http.Error(w, `{"status":"degraded","postgres":"down"}`, http.StatusServiceUnavailable)
				return
			}
		}
		if deps.Redis != nil {
			if err := deps.Redis.Health(ctx); err != nil {
				http.Error(w, `{"status":"degraded","redis":"down"}`, http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
