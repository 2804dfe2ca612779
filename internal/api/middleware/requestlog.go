package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/devpulse/internal/logstore"
	"github.com/kiranshivaraju/devpulse/internal/store"
	"github.com/kiranshivaraju/devpulse/pkg/models"
)

const keyPrefixLen = 12

// RequestLog records every SDK call: one api_requests document for the audit
// trail and one fold into the app's daily rollup. Both writes happen off the
// request path so ingestion latency never depends on them.
type RequestLog struct {
	logs  logstore.LogStore
	store store.Store
}

// NewRequestLog creates the SDK request recorder.
func NewRequestLog(l logstore.LogStore, s store.Store) *RequestLog {
	return &RequestLog{logs: l, store: s}
}

// Record captures the request outcome for app-authenticated calls. Requests
// without an app principal pass through untouched.
func (rl *RequestLog) Record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := GetPrincipal(r)
		if !ok || p.App == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		req := &models.APIRequest{
			AppID:        p.App.ID.String(),
			APIKey:       truncateKey(p.App.APIKey),
			Endpoint:     r.URL.Path,
			Method:       r.Method,
			StatusCode:   rec.status,
			ResponseTime: float64(elapsed.Milliseconds()),
			Timestamp:    start.UTC(),
			IP:           clientIP(r),
		}
		if ua := r.UserAgent(); ua != "" {
			req.UserAgent = &ua
		}

		// Recorded async; a failed audit write must not fail the SDK call.
		go rl.persist(p.App.ID, req)
	})
}

func (rl *RequestLog) persist(appID uuid.UUID, req *models.APIRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rl.logs.InsertAPIRequest(ctx, req); err != nil {
		slog.Error("record api request", "error", err, "app_id", req.AppID)
	}

	errs := 0
	if req.StatusCode >= 500 {
		errs = 1
	}
	day := req.Timestamp.Truncate(24 * time.Hour)
	if err := rl.store.UpsertAppMetricDelta(ctx, appID, day, 1, errs, req.ResponseTime); err != nil {
		slog.Error("update app metric", "error", err, "app_id", req.AppID)
	}
}

func truncateKey(key string) string {
	if len(key) <= keyPrefixLen {
		return key
	}
	return key[:keyPrefixLen]
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
