package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/kiranshivaraju/devpulse/internal/api/response"
	"github.com/kiranshivaraju/devpulse/internal/webhook"
)

// Webhook receives GitHub webhook deliveries. The endpoint is public;
// authentication is the HMAC signature, never a session or API key.
type Webhook struct {
	secret     string
	dispatcher *webhook.Dispatcher
}

// NewWebhook creates the webhook receiver.
func NewWebhook(secret string, d *webhook.Dispatcher) *Webhook {
	return &Webhook{secret: secret, dispatcher: d}
}

const maxDeliveryBytes = 5 << 20 // GitHub caps payloads at 25 MB; ours are far smaller

// Receive handles POST deliveries. Signature verification happens against
// the raw body before any parsing.
func (h *Webhook) Receive(w http.ResponseWriter, r *http.Request) {
	signature := r.Header.Get("X-Hub-Signature-256")
	event := r.Header.Get("X-GitHub-Event")
	if signature == "" || event == "" {
		response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest,
			"Missing webhook headers", nil)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxDeliveryBytes))
	if err != nil {
		response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest,
			"Unreadable request body", nil)
		return
	}

	if !webhook.VerifySignature(h.secret, body, signature) {
		response.Error(w, http.StatusUnauthorized, response.CodeUnauthorized,
			"Invalid webhook signature", nil)
		return
	}

	res, err := h.dispatcher.Dispatch(r.Context(), event, body)
	switch {
	case errors.Is(err, webhook.ErrRepoNotConfigured):
		// Acknowledge so GitHub does not retry; nothing was stored.
		response.JSON(w, map[string]string{"message": "Repository not configured"})
	case errors.Is(err, webhook.ErrMalformedPayload):
		response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest,
			"Malformed webhook payload", nil)
	case err != nil:
		writeError(w, err)
	default:
		response.JSON(w, map[string]string{
			"message":    "Event stored",
			"event":      event,
			"repository": res.Repository,
			"event_id":   res.EventID,
		})
	}
}

// Describe handles GET probes against the webhook URL. GitHub's endpoint
// verification sends a hub.challenge parameter and expects it echoed back
// verbatim; anything else gets a static acknowledgement.
func (h *Webhook) Describe(w http.ResponseWriter, r *http.Request) {
	if challenge := r.URL.Query().Get("hub.challenge"); challenge != "" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(challenge))
		return
	}
	response.JSON(w, map[string]string{
		"message": "GitHub webhook endpoint. Deliveries must be POSTed with a valid X-Hub-Signature-256 header.",
	})
}
