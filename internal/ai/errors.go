package ai

import (
	"errors"

	"github.com/kiranshivaraju/devpulse/pkg/models"
)

// Provider failure sentinels are declared in pkg/models alongside AIProvider;
// these names re-export them for callers working against the service.
var (
	ErrProviderUnavailable = models.ErrProviderUnavailable
	ErrInferenceTimeout    = models.ErrInferenceTimeout
	ErrInvalidResponse     = models.ErrInvalidResponse
	ErrEmptyCompletion     = models.ErrEmptyCompletion
)

// ErrNoInput is reported when an analysis operation has nothing to work on.
var ErrNoInput = errors.New("nothing to analyze")
