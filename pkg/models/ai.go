package models

import (
	"context"
	"errors"
)

// Provider failure sentinels. They live here, next to AIProvider, so the
// provider implementations can return them without importing the service
// package that wires the providers together.
var (
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	ErrInferenceTimeout    = errors.New("ai inference timeout")
	ErrInvalidResponse     = errors.New("ai provider returned invalid response")
	ErrEmptyCompletion     = errors.New("ai provider returned empty completion")
)

// AIProvider is the interface every completion backend must implement.
// Never call a specific provider directly — always inject this interface.
type AIProvider interface {
	// Complete sends a system + user prompt pair and returns the completion
	// text. An empty completion is an error condition for callers.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	// Name returns the provider identifier (e.g., "openai", "anthropic").
	Name() string
}

// CompletionRequest is the input to a single completion call.
type CompletionRequest struct {
	System    string
	Prompt    string
	MaxTokens int
}
