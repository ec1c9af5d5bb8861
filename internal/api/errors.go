package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/relovd/search-api/internal/middleware"
)

// Error codes returned in the machine-readable "code" field.
const (
	ErrCodeValidation   = "validation_error"
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeInternal     = "internal_error"
	ErrCodeUnavailable  = "service_unavailable"
	ErrCodeRateLimited  = "rate_limited"
)

// StatusCodeMapping maps error codes to HTTP status codes.
var StatusCodeMapping = map[string]int{
	ErrCodeValidation:  http.StatusBadRequest,
	ErrCodeBadRequest:  http.StatusBadRequest,
	ErrCodeNotFound:    http.StatusNotFound,
	ErrCodeInternal:    http.StatusInternalServerError,
	ErrCodeUnavailable: http.StatusServiceUnavailable,
	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// ErrorResponse is the JSON body for all error replies.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WriteError writes a structured error response and tags the request
// context so the logging middleware can include the code.
func WriteError(w http.ResponseWriter, r *http.Request, code string, message string) {
	status, ok := StatusCodeMapping[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	ctx := middleware.SetErrorCode(r.Context(), code)
	middleware.UpdateResponseContext(w, ctx)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: code}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode error response", slog.String("error", err.Error()))
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", slog.String("error", err.Error()))
	}
}
