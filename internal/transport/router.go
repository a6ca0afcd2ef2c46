package transport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pitabwire/greenlight/internal/config"
	"github.com/pitabwire/greenlight/internal/engine"
	"github.com/pitabwire/greenlight/internal/observability"
	"github.com/pitabwire/greenlight/internal/template"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config      *config.Config
	Logger      *zap.Logger
	Engine      *engine.Engine
	Templates   template.Store
	Idempotency engine.IdempotencyStore
	Metrics     *observability.Metrics

	// Authenticate wraps the /v1 group; nil disables authentication, which
	// test harnesses use to inject claims directly.
	Authenticate func(http.Handler) http.Handler

	Readiness observability.ReadinessChecks
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, and metrics endpoints bypass the
// authentication middleware.
func NewRouter(deps Dependencies) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	// Global middleware: applied to all routes including health.
	r.Use(Recovery(logger))
	r.Use(CORS(deps.Config.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)
	if deps.Config.Observability.Tracing.Enabled {
		r.Use(observability.TracingMiddleware)
	}
	if deps.Metrics != nil {
		r.Use(deps.Metrics.MetricsMiddleware)
	}

	// Public routes — bypass authentication.
	r.Get("/health", observability.HandleHealth())
	r.Get("/ready", observability.HandleReady(deps.Readiness))
	if deps.Config.Observability.Metrics.Enabled {
		path := deps.Config.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, observability.Handler())
	}

	// Authenticated routes.
	auth := deps.Authenticate
	if auth == nil {
		auth = func(next http.Handler) http.Handler { return next }
	}

	idemTTL := deps.Config.Idempotency.Store.DefaultTTL
	if idemTTL <= 0 {
		idemTTL = 24 * time.Hour
	}
	var idem engine.IdempotencyStore
	if deps.Config.Idempotency.Enabled {
		idem = deps.Idempotency
	}

	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Use(BuildRequestContext)
		r.Use(HandlerTimeout(deps.Config.Server.HandlerTimeout))
		r.Use(RequestLogging(logger))

		r.Post("/v1/templates", handleTemplateCreate(deps.Templates, deps.Metrics))
		r.Get("/v1/templates", handleTemplateList(deps.Templates))
		r.Get("/v1/templates/{templateId}", handleTemplateGet(deps.Templates))

		r.Post("/v1/workflows", handleWorkflowCreate(deps.Engine, deps.Metrics))
		r.Get("/v1/workflows", handleWorkflowList(deps.Engine))
		r.Get("/v1/workflows/{workflowId}", handleWorkflowGet(deps.Engine))
		r.Delete("/v1/workflows/{workflowId}", handleWorkflowDelete(deps.Engine))
		r.Post("/v1/workflows/{workflowId}/actions", handleWorkflowAction(deps.Engine, idem, idemTTL, deps.Metrics))
		r.Get("/v1/workflows/{workflowId}/history", handleWorkflowHistory(deps.Engine))
	})

	return r
}
