package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func ingestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(handler)
}

func TestLogError_Success(t *testing.T) {
	ts := ingestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/logs.logError" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if got := r.Header.Get("X-API-Key"); got != "dp_live_testkey" {
			t.Errorf("unexpected api key header: %s", got)
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["message"] != "payment declined unexpectedly" {
			t.Errorf("unexpected message: %v", body["message"])
		}
		if body["source"] != "backend" {
			t.Errorf("unexpected source: %v", body["source"])
		}
		if body["severity"] != "error" {
			t.Errorf("unexpected severity: %v", body["severity"])
		}
		if _, present := body["timestamp"]; present {
			t.Error("zero timestamp should be omitted")
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]string{"id": "656f1e9a0000000000000001"},
		})
	})
	defer ts.Close()

	c := New(ts.URL, "dp_live_testkey", 5*time.Second)
	id, err := c.LogError(context.Background(), ErrorEntry{
		Message:  "payment declined unexpectedly",
		Source:   "backend",
		Severity: "error",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "656f1e9a0000000000000001" {
		t.Errorf("unexpected id: %s", id)
	}
}

func TestLogPerformance_Success(t *testing.T) {
	ts := ingestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/logs.logPerformance" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]string{"id": "656f1e9a0000000000000002"},
		})
	})
	defer ts.Close()

	c := New(ts.URL, "dp_live_testkey", 5*time.Second)
	id, err := c.LogPerformance(context.Background(), PerformanceEntry{
		Endpoint:     "/api/checkout",
		Method:       "POST",
		ResponseTime: 182.5,
		StatusCode:   200,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == "" {
		t.Error("expected an id")
	}
}

func TestLogError_Unauthorized(t *testing.T) {
	ts := ingestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"code": "UNAUTHORIZED", "message": "Invalid API key"},
		})
	})
	defer ts.Close()

	c := New(ts.URL, "dp_live_revoked", 5*time.Second)
	_, err := c.LogError(context.Background(), ErrorEntry{Message: "boom", Source: "backend", Severity: "error"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestLogError_RejectedWithMessage(t *testing.T) {
	ts := ingestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"code": "INVALID_REQUEST", "message": "Validation failed"},
		})
	})
	defer ts.Close()

	c := New(ts.URL, "dp_live_testkey", 5*time.Second)
	_, err := c.LogError(context.Background(), ErrorEntry{Source: "backend"})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
	if got := err.Error(); got != "request rejected: Validation failed" {
		t.Errorf("unexpected error text: %s", got)
	}
}

func TestLogError_ServerError(t *testing.T) {
	ts := ingestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer ts.Close()

	c := New(ts.URL, "dp_live_testkey", 5*time.Second)
	_, err := c.LogError(context.Background(), ErrorEntry{Message: "boom", Source: "backend", Severity: "error"})
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("expected ErrUnreachable, got %v", err)
	}
}

func TestLogError_ContextTimeout(t *testing.T) {
	ts := ingestServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})
	defer ts.Close()

	c := New(ts.URL, "dp_live_testkey", 5*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.LogError(ctx, ErrorEntry{Message: "boom", Source: "backend", Severity: "error"})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestLogError_Unreachable(t *testing.T) {
	c := New("http://127.0.0.1:1", "dp_live_testkey", 500*time.Millisecond)
	_, err := c.LogError(context.Background(), ErrorEntry{Message: "boom", Source: "backend", Severity: "error"})
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("expected ErrUnreachable, got %v", err)
	}
}
