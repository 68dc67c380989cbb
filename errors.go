package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	// gate and resolver errors
	ErrUnauthenticated    = errors.New("not logged in")
	ErrInvalidCredentials = errors.New("incorrect credentials")
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation error")

	// token errors, only seen by the session extractor
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrExpired          = errors.New("token expired")
	ErrIncompleteClaim  = errors.New("claim requires id, username and email")

	// store errors
	ErrDuplicate = errors.New("duplicate key")
)

// ValidationError lists rejected input fields. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Fields map[string]string
}

func newValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation error: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// APIError represents a structured API error response
type APIError struct {
	Code    string            `json:"error_code"`
	Message string            `json:"error_message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// classify maps a resolver error onto an HTTP status and an APIError body.
// Errors outside the taxonomy are reported generically.
func classify(err error) (int, APIError) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, APIError{Code: "VALIDATION_ERROR", Message: verr.Error(), Fields: verr.Fields}
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, APIError{Code: "VALIDATION_ERROR", Message: err.Error()}
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, APIError{Code: "UNAUTHENTICATED", Message: "You need to be logged in"}
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized, APIError{Code: "INVALID_CREDENTIALS", Message: "Incorrect credentials"}
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, APIError{Code: "NOT_FOUND", Message: err.Error()}
	default:
		return http.StatusInternalServerError, APIError{Code: "INTERNAL_ERROR", Message: "Internal server error"}
	}
}

// writeError writes a structured error response
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, APIError{
		Code:    code,
		Message: message,
	})
}

// writeResolverError translates a resolver failure into its HTTP response.
func (a *App) writeResolverError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	if status == http.StatusInternalServerError {
		a.Log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}
