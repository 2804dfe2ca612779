// Package client is the Go SDK for the DevPulse ingestion API. It covers the
// two telemetry procedures an instrumented app calls on its own behalf,
// authenticated with the app's API key.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Sentinel errors for ingestion failures.
var (
	ErrUnreachable  = errors.New("devpulse unreachable")
	ErrUnauthorized = errors.New("invalid API key")
	ErrRejected     = errors.New("request rejected")
	ErrTimeout      = errors.New("request timeout")
)

const defaultTimeout = 10 * time.Second

// Client talks to a DevPulse server. Safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New creates a client. apiKey is the app's dp_live_ key from the dashboard.
// Zero timeout falls back to 10 seconds.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// ErrorEntry is one error event to report. Message, Source, and Severity are
// required; the server rejects entries missing any of them.
type ErrorEntry struct {
	Message    string         `json:"message"`
	StackTrace string         `json:"stack_trace,omitempty"`
	Source     string         `json:"source"`
	Severity   string         `json:"severity"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Tags       []string       `json:"tags,omitempty"`
	Timestamp  time.Time      `json:"timestamp,omitzero"`
}

// PerformanceEntry is one timing sample to report. Endpoint, Method,
// ResponseTime, and StatusCode are required.
type PerformanceEntry struct {
	Endpoint     string         `json:"endpoint"`
	Method       string         `json:"method"`
	ResponseTime float64        `json:"response_time"`
	StatusCode   int            `json:"status_code"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Timestamp    time.Time      `json:"timestamp,omitzero"`
}

// LogError reports an error event and returns the stored document id.
func (c *Client) LogError(ctx context.Context, entry ErrorEntry) (string, error) {
	return c.post(ctx, "/api/v1/logs.logError", entry)
}

// LogPerformance reports a timing sample and returns the stored document id.
func (c *Client) LogPerformance(ctx context.Context, entry PerformanceEntry) (string, error) {
	return c.post(ctx, "/api/v1/logs.logPerformance", entry)
}

func (c *Client) post(ctx context.Context, path string, body any) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", classifyError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return "", ErrUnauthorized
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode)
	case resp.StatusCode >= 400:
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error.Message != "" {
			return "", fmt.Errorf("%w: %s", ErrRejected, envelope.Error.Message)
		}
		return "", fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}

	var envelope struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return envelope.Data.ID, nil
}

// classifyError maps transport errors to sentinels.
func classifyError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}
