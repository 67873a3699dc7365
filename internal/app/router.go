package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/pulsefit/pulsefit/internal/auth"
	"github.com/pulsefit/pulsefit/internal/authz"
	"github.com/pulsefit/pulsefit/internal/billing"
	"github.com/pulsefit/pulsefit/internal/flags"
	"github.com/pulsefit/pulsefit/internal/gyms"
	"github.com/pulsefit/pulsefit/internal/observability"
	"github.com/pulsefit/pulsefit/internal/platform/httpx"
	"github.com/pulsefit/pulsefit/internal/shared"
	"github.com/pulsefit/pulsefit/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	AuthHandler      *auth.Handler
	GymsHandler      *gyms.Handler
	FlagAdminHandler *flags.AdminHandler
	FlagCheckHandler *flags.CheckHandler
	BillingHandler   *billing.Handler
	Guard            authz.Middleware
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with PulseFit defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Denial surfaces. Each guard outcome lands on a distinct one so the UI
	// never shows an ambiguous failure.
	r.Get(params.Config.OnboardingPath, func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]any{"surface": "onboarding", "detail": "create or join a gym to continue"})
	})
	r.Get(params.Config.ForbiddenPath, func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "you do not have access to this resource")
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Route("/gyms", func(r chi.Router) {
		r.Use(params.Guard.RequireAuthenticated())
		params.GymsHandler.MountRoutes(r)
	})

	// Feature checks need a selected gym but no particular permission.
	r.Group(func(r chi.Router) {
		r.Use(params.Guard.Require(authz.Requirement{}))
		r.Get("/features/{name}", params.FlagCheckHandler.Check(func(r *http.Request) uuid.UUID {
			if sess := authz.TenantSessionFromContext(r.Context()); sess != nil {
				return sess.GymID
			}
			return uuid.Nil
		}))
	})

	r.Route("/admin/flags", func(r chi.Router) {
		r.Use(params.Guard.RequirePlatform())
		params.FlagAdminHandler.MountRoutes(r)
	})

	r.Route("/admin/billing", func(r chi.Router) {
		r.Use(params.Guard.RequirePlatform())
		params.BillingHandler.MountRoutes(r)
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
