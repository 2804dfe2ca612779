// Package handler implements the procedure-call surface of the API. Every
// dashboard operation is a POST to /api/v1/<group>.<name> with a JSON body;
// responses use the shared envelope.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/kiranshivaraju/devpulse/internal/ai"
	mw "github.com/kiranshivaraju/devpulse/internal/api/middleware"
	"github.com/kiranshivaraju/devpulse/internal/api/response"
	"github.com/kiranshivaraju/devpulse/internal/logstore"
	"github.com/kiranshivaraju/devpulse/internal/store"
	"github.com/kiranshivaraju/devpulse/internal/tenancy"
	"github.com/kiranshivaraju/devpulse/pkg/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// decodeBody parses and validates a JSON request body. An empty body is
// allowed when the target struct has no required fields.
func decodeBody(r *http.Request, dst any) error {
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			return errBadJSON
		}
	}
	if err := validate.Struct(dst); err != nil {
		return err
	}
	return nil
}

var errBadJSON = errors.New("invalid JSON body")

// principal returns the request principal; the auth middleware guarantees it
// exists on every route that reaches a handler.
func principal(w http.ResponseWriter, r *http.Request) (*models.Principal, bool) {
	p, ok := mw.GetPrincipal(r)
	if !ok || p.Team == nil {
		response.Error(w, http.StatusUnauthorized,
			response.CodeUnauthorized, "Authentication required", nil)
		return nil, false
	}
	return p, true
}

// parseOptionalUUID parses an optional id field. Empty means absent.
func parseOptionalUUID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// writeError maps domain errors onto the HTTP error taxonomy.
func writeError(w http.ResponseWriter, err error) {
	var verr validator.ValidationErrors

	switch {
	case errors.Is(err, errBadJSON):
		response.Error(w, http.StatusBadRequest,
			response.CodeInvalidRequest, "Invalid JSON body", nil)
	case errors.As(err, &verr):
		details := make(map[string]string, len(verr))
		for _, fe := range verr {
			details[fe.Field()] = fe.Tag()
		}
		response.Error(w, http.StatusBadRequest,
			response.CodeInvalidRequest, "Validation failed", details)
	case errors.Is(err, store.ErrNotFound), errors.Is(err, logstore.ErrNotFound):
		response.Error(w, http.StatusNotFound,
			response.CodeNotFound, "Resource not found", nil)
	case errors.Is(err, tenancy.ErrNoTeamMembership):
		response.Error(w, http.StatusForbidden,
			response.CodeForbidden, "No team membership", nil)
	case errors.Is(err, store.ErrDuplicateKey):
		response.Error(w, http.StatusBadRequest,
			response.CodeInvalidRequest, "Duplicate resource", nil)
	case errors.Is(err, ai.ErrNoInput):
		response.Error(w, http.StatusBadRequest,
			response.CodeInvalidRequest, "Nothing to analyze", nil)
	case errors.Is(err, ai.ErrProviderUnavailable),
		errors.Is(err, ai.ErrInferenceTimeout),
		errors.Is(err, ai.ErrInvalidResponse),
		errors.Is(err, ai.ErrEmptyCompletion):
		response.Error(w, http.StatusBadGateway,
			response.CodeUpstreamError, "AI provider request failed", nil)
	default:
		response.Error(w, http.StatusInternalServerError,
			response.CodeInternalError, "An unexpected error occurred", nil)
	}
}

// pageFromRequest builds a bounded page from limit/offset fields.
func pageFromRequest(limit, offset int64) logstore.Page {
	return logstore.Page{Limit: limit, Offset: offset}.Bounded()
}

func paginationMeta(page logstore.Page, total int64) response.PaginationMeta {
	return response.PaginationMeta{
		Limit:   page.Limit,
		Offset:  page.Offset,
		Total:   total,
		HasNext: page.Offset+page.Limit < total,
	}
}
