// Package api assembles the HTTP surface: middleware stack, the procedure
// routes under /api/v1, and the public webhook and operational endpoints.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kiranshivaraju/devpulse/internal/api/handler"
	mw "github.com/kiranshivaraju/devpulse/internal/api/middleware"
	"github.com/kiranshivaraju/devpulse/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
// Handler groups must be non-nil; Health and Metrics fall back to a 501
// placeholder when absent.
type Dependencies struct {
	Auth       *mw.Auth
	RateLimit  *mw.RateLimit
	RequestLog *mw.RequestLog

	Health  http.HandlerFunc
	Metrics http.Handler

	Apps    *handler.Apps
	Logs    *handler.Logs
	GitHub  *handler.GitHub
	AI      *handler.AI
	Webhook *handler.Webhook
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public endpoints: health, Prometheus metrics, and the webhook receiver,
	// which authenticates by HMAC signature instead of the auth middleware.
	r.Get("/api/v1/health", orNotImplemented(deps.Health))
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}
	r.Post("/api/webhooks/github", deps.Webhook.Receive)
	r.Get("/api/webhooks/github", deps.Webhook.Describe)

	// Authenticated procedures
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)

		// SDK ingestion. Never rate limited: dropping telemetry during an
		// incident is exactly the wrong failure mode.
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireApp)
			r.Use(deps.RequestLog.Record)

			r.Post("/api/v1/logs.logError", deps.Logs.LogError)
			r.Post("/api/v1/logs.logPerformance", deps.Logs.LogPerformance)
		})

		// Dashboard procedures
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimit.Limit)

			r.Post("/api/v1/apps.list", deps.Apps.List)
			r.Post("/api/v1/apps.get", deps.Apps.Get)
			r.Post("/api/v1/apps.create", deps.Apps.Create)
			r.Post("/api/v1/apps.update", deps.Apps.Update)
			r.Post("/api/v1/apps.delete", deps.Apps.Delete)
			r.Post("/api/v1/apps.rotateKey", deps.Apps.RotateKey)
			r.Post("/api/v1/apps.createToken", deps.Apps.CreateToken)
			r.Post("/api/v1/apps.listTokens", deps.Apps.ListTokens)
			r.Post("/api/v1/apps.revokeToken", deps.Apps.RevokeToken)
			r.Post("/api/v1/apps.metrics", deps.Apps.Metrics)

			r.Post("/api/v1/logs.getErrors", deps.Logs.GetErrors)
			r.Post("/api/v1/logs.getError", deps.Logs.GetError)
			r.Post("/api/v1/logs.resolveError", deps.Logs.ResolveError)
			r.Post("/api/v1/logs.getErrorStats", deps.Logs.GetErrorStats)
			r.Post("/api/v1/logs.getPerformance", deps.Logs.GetPerformance)
			r.Post("/api/v1/logs.getPerformanceStats", deps.Logs.GetPerformanceStats)

			r.Post("/api/v1/github.getIntegration", deps.GitHub.GetIntegration)
			r.Post("/api/v1/github.connect", deps.GitHub.Connect)
			r.Post("/api/v1/github.disconnect", deps.GitHub.Disconnect)
			r.Post("/api/v1/github.getEvents", deps.GitHub.GetEvents)
			r.Post("/api/v1/github.getEvent", deps.GitHub.GetEvent)
			r.Post("/api/v1/github.getEventStats", deps.GitHub.GetEventStats)
			r.Post("/api/v1/github.processEvent", deps.GitHub.ProcessEvent)
			r.Post("/api/v1/github.getIssues", deps.GitHub.GetIssues)

			r.Post("/api/v1/ai.generateBugReport", deps.AI.GenerateBugReport)
			r.Post("/api/v1/ai.summarizeErrors", deps.AI.SummarizeErrors)
			r.Post("/api/v1/ai.suggestResolution", deps.AI.SuggestResolution)
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
