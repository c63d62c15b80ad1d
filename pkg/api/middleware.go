package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ssargent/verdandi/pkg/results"
)

// apiKeyMiddleware validates the X-API-Key header. Keys are compared in
// constant time.
func apiKeyMiddleware(expectedKey string) func(http.Handler) http.Handler {
	expected := []byte(expectedKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				sendError(w, "Missing X-API-Key header", http.StatusUnauthorized)
				return
			}
			if subtle.ConstantTimeCompare([]byte(apiKey), expected) != 1 {
				sendError(w, "Invalid API key", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// statusForError maps result-collection error kinds onto HTTP statuses.
// Bad indexes, columns, and operations are the client's fault; invalidated
// handles and detached rows mean the resource is gone; anything unknown is
// a server error.
func statusForError(err error) int {
	var (
		oob *results.OutOfBoundsError
		uct *results.UnsupportedColumnTypeError
		ict *results.IncorrectTableError
		itx *results.InvalidTransactionError
	)
	switch {
	case errors.As(err, &oob), errors.As(err, &uct), errors.As(err, &ict):
		return http.StatusBadRequest
	case errors.As(err, &itx):
		return http.StatusConflict
	case errors.Is(err, results.ErrInvalidated), errors.Is(err, results.ErrDetachedAccessor):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// sendResultsError renders a result-collection error with its mapped status
func sendResultsError(w http.ResponseWriter, err error) {
	sendError(w, err.Error(), statusForError(err))
}

// sendSuccess sends a successful JSON response
func sendSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	response := APIResponse{
		Success: true,
		Data:    data,
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// sendError sends an error JSON response
func sendError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := APIResponse{
		Success: false,
		Error:   message,
	}
	_ = json.NewEncoder(w).Encode(response)
}
