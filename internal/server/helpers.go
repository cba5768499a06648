package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bobmcallan/tally/internal/models"
)

// ErrorResponse is the standard error format for REST API responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message})
}

// WriteErrorWithCode writes a JSON error response with an error code.
func WriteErrorWithCode(w http.ResponseWriter, statusCode int, message, code string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// writeServiceError maps the error taxonomy onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		WriteErrorWithCode(w, http.StatusBadRequest, err.Error(), "invalid_input")
	case errors.Is(err, models.ErrNotFound):
		WriteErrorWithCode(w, http.StatusNotFound, err.Error(), "not_found")
	case errors.Is(err, models.ErrProviderUnavailable):
		WriteErrorWithCode(w, http.StatusBadGateway, err.Error(), "provider_unavailable")
	case errors.Is(err, models.ErrStoreFailure):
		WriteErrorWithCode(w, http.StatusInternalServerError, err.Error(), "store_failure")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		WriteErrorWithCode(w, http.StatusServiceUnavailable, err.Error(), "cancelled")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

// RequireMethod validates the HTTP method and returns true if it matches.
// If it doesn't match, it writes a 405 response and returns false.
func RequireMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	return false
}

// DecodeJSON reads and decodes JSON from the request body into v.
// Returns false and writes a 400 error if decoding fails.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil || r.Body == http.NoBody {
		WriteError(w, http.StatusBadRequest, "Request body is required")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return false
	}
	return true
}

// queryPeriod reads ?period=, falling back to def when absent.
func queryPeriod(r *http.Request, def models.Period) (models.Period, error) {
	raw := r.URL.Query().Get("period")
	if raw == "" {
		return def, nil
	}
	return models.ParsePeriod(raw)
}

// validateTicker normalizes a ticker taken from a URL path and rejects
// anything outside letters, digits, dot, hyphen and underscore.
func validateTicker(ticker string) (string, string) {
	ticker = models.NormalizeTicker(ticker)
	if ticker == "" {
		return "", "ticker is required"
	}
	if len(ticker) > 32 {
		return "", "ticker is too long"
	}
	for _, c := range ticker {
		switch {
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '.', c == '-', c == '_':
		default:
			return "", "ticker contains invalid characters"
		}
	}
	if strings.Contains(ticker, "..") {
		return "", "ticker contains invalid characters"
	}
	return ticker, ""
}
