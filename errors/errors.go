// Package errors provides the error handling system for the explainthat server.
// It includes structured error types, JSON response formatting, request ID
// tracking, and integrated logging with Uber's zap logger.
//
// Internal packages return plain wrapped Go errors; handlers translate them
// into an *APIError at the HTTP boundary:
//
//	errors.ErrorWithType(w, "Invalid input", errors.ValidationError, http.StatusUnprocessableEntity)
//
// For richer responses use the constructors in types.go:
//
//	err := errors.NewValidationError(requestID, "Request validation failed", map[string]interface{}{
//	    "field": "language",
//	    "error": "required",
//	})
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// RequestIDHeader is the header carrying the request ID on requests and responses.
const RequestIDHeader = "X-Request-ID"

// DefaultLogger is the zap logger used by package-level helpers.
// It is replaced at startup through SetLogger.
var DefaultLogger *zap.Logger

func init() {
	var err error
	DefaultLogger, err = zap.NewProduction()
	if err != nil {
		DefaultLogger = zap.NewNop()
	}
}

// SetLogger sets the package logger. A nil logger is ignored so logging
// cannot be disabled by accident.
func SetLogger(logger *zap.Logger) {
	if logger != nil {
		DefaultLogger = logger
	}
}

// ErrorType represents the category of an API error.
type ErrorType string

const (
	// ValidationError represents input validation failures
	ValidationError ErrorType = "validation_error"

	// BadRequestError represents a request body that could not be decoded
	BadRequestError ErrorType = "bad_request"

	// TemplateError represents a prompt that could not be rendered
	TemplateError ErrorType = "template_error"

	// ProviderError represents errors from the LLM provider
	ProviderError ErrorType = "provider_error"

	// InternalError represents unexpected internal server errors
	InternalError ErrorType = "internal_error"

	// NotFoundError represents unknown routes or resources
	NotFoundError ErrorType = "not_found"

	// MethodNotAllowedError represents a known route hit with the wrong method
	MethodNotAllowedError ErrorType = "method_not_allowed"
)

// APIError is the error returned to HTTP clients. It is serialized to JSON
// while keeping the underlying cause for logs.
type APIError struct {
	// Type categorizes the error for client handling
	Type ErrorType `json:"type"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Code is the HTTP status code (not exposed in JSON)
	Code int `json:"-"`

	// RequestID links the error to a specific request
	RequestID string `json:"request_id"`

	// Details contains additional error context
	Details map[string]interface{} `json:"details,omitempty"`

	err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error.
func (e *APIError) Unwrap() error {
	return e.err
}

// Is matches on error type only, so errors.Is(err, &APIError{Type: ProviderError})
// works regardless of message or request.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WriteError writes an APIError as a JSON response with its status code.
func WriteError(w http.ResponseWriter, err *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	if encErr := json.NewEncoder(w).Encode(err); encErr != nil {
		DefaultLogger.Error("failed to encode error response",
			zap.Error(encErr),
			zap.String("request_id", err.RequestID),
		)
	}
}

// ErrorWithType is a drop-in replacement for http.Error that writes a typed
// APIError. The request ID is taken from the response headers when present.
func ErrorWithType(w http.ResponseWriter, message string, errType ErrorType, code int) {
	WriteError(w, &APIError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: w.Header().Get(RequestIDHeader),
	})
}
