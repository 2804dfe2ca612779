// Package metrics registers the Prometheus instruments the server exposes on
// /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WebhookEvents counts inbound GitHub webhook deliveries by event type
	// and outcome (stored, unmatched, rejected).
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devpulse_webhook_events_total",
		Help: "Inbound GitHub webhook deliveries.",
	}, []string{"event", "outcome"})

	// IngestedLogs counts SDK log writes by kind (error, performance).
	IngestedLogs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devpulse_ingested_logs_total",
		Help: "SDK log entries written to the log store.",
	}, []string{"kind"})

	// AICompletions counts completion calls by provider and outcome.
	AICompletions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devpulse_ai_completions_total",
		Help: "AI completion requests by provider and outcome.",
	}, []string{"provider", "outcome"})

	// RequestDuration tracks API handler latency.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "devpulse_http_request_duration_seconds",
		Help:    "API request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

// Handler serves the Prometheus exposition endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
