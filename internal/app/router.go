package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jobready/accesscore/internal/assignments"
	"github.com/jobready/accesscore/internal/authz"
	"github.com/jobready/accesscore/internal/observability"
	"github.com/jobready/accesscore/internal/principals"
	"github.com/jobready/accesscore/internal/platform/httpx"
	"github.com/jobready/accesscore/internal/projection"
	"github.com/jobready/accesscore/internal/roles"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	PrincipalsHandler  *principals.Handler
	RolesHandler       *roles.Handler
	AssignmentsHandler *assignments.Handler
	AuthzHandler       *authz.Handler
	ProjectionHandler  *projection.Handler
	Pool               *pgxpool.Pool
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with access core defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", healthHandler(params.Pool))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	params.PrincipalsHandler.MountRoutes(r)
	params.RolesHandler.MountRoutes(r)
	params.AssignmentsHandler.MountRoutes(r)
	params.AuthzHandler.MountRoutes(r)
	params.ProjectionHandler.MountRoutes(r)

	return r
}

func healthHandler(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
