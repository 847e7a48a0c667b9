package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ca-srg/leakscope/internal/search"
)

// Error codes returned in the "code" field of error bodies.
const (
	codeBadRequest        = "bad_request"
	codeValidationFailed  = "validation_failed"
	codeInvalidQuery      = "invalid_query"
	codeAllSourcesFailed  = "all_sources_failed"
	codeCanceled          = "canceled"
	codeUnauthorized      = "unauthorized"
	codeForbidden         = "forbidden"
	codeNotFound          = "not_found"
	codeExportFailed      = "export_failed"
	codeInternal          = "internal_error"
	statusClientCancelled = 499
)

// errorResponse is the body of every non-2xx JSON response.
type errorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Sources map[string]string `json:"sources,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// writeSearchError maps engine errors onto HTTP responses. Internal detail
// is only exposed for per-source failures, which name the failing source.
func writeSearchError(w http.ResponseWriter, err error) {
	var failed *search.AllSourcesFailedError
	switch {
	case errors.Is(err, search.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, codeInvalidQuery, err.Error())
	case errors.As(err, &failed):
		sources := make(map[string]string, len(failed.Failures))
		for _, f := range failed.Failures {
			sources[f.Source] = string(f.Type)
		}
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Code:    codeAllSourcesFailed,
			Message: search.ErrAllSourcesFailed.Error(),
			Sources: sources,
		})
	case errors.Is(err, context.Canceled):
		writeError(w, statusClientCancelled, codeCanceled, "request canceled")
	default:
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}
