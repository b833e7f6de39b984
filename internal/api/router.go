package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/photon/internal/api/middleware"
	"github.com/kiranshivaraju/photon/internal/api/response"
	"github.com/kiranshivaraju/photon/internal/observability"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit
	Metrics   *observability.Metrics

	// CallbackPath is where providers deliver callbacks, e.g. /webhooks/ai.
	CallbackPath string

	HealthHandler    http.HandlerFunc
	MetricsHandler   http.Handler
	WebhookHandler   http.HandlerFunc
	SubmitHandler    http.HandlerFunc
	GetJobHandler    http.HandlerFunc
	CancelJobHandler http.HandlerFunc
	ReconcileHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics(deps.Metrics))

	// Public
	r.Get("/health", orNotImplemented(deps.HealthHandler))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// Authenticated by the per-job callback token, not an API key
	callbackPath := deps.CallbackPath
	if callbackPath == "" {
		callbackPath = "/webhooks/ai"
	}
	r.Post(callbackPath, orNotImplemented(deps.WebhookHandler))

	// Protected routes
	r.Route("/jobs", func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Post("/", orNotImplemented(deps.SubmitHandler))
		r.Get("/{jobID}", orNotImplemented(deps.GetJobHandler))
		r.Post("/{jobID}/cancel", orNotImplemented(deps.CancelJobHandler))

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(mw.ScopeAdmin))
			r.Post("/reconcile", orNotImplemented(deps.ReconcileHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
