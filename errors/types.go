package errors

import (
	"net/http"
)

// NewError creates a new APIError with full control over its fields.
// Prefer one of the specialized constructors below.
//
// Example:
//
//	err := NewError(InternalError, "encode failed", 500, "req_123", nil, encErr)
func NewError(errType ErrorType, message string, code int, requestID string, details map[string]interface{}, err error) *APIError {
	return &APIError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
		Details:   details,
		err:       err,
	}
}

// NewBadRequestError is used when the request body cannot be decoded at all,
// for example malformed JSON or a field of the wrong type.
func NewBadRequestError(requestID, message string, err error) *APIError {
	return &APIError{
		Type:      BadRequestError,
		Message:   message,
		Code:      http.StatusBadRequest,
		RequestID: requestID,
		err:       err,
	}
}

// NewValidationError creates a validation error for a request that decoded
// but failed field constraints:
//   - missing required fields
//   - empty language
//   - prompt over the token limit
//
// Example:
//
//	err := NewValidationError("req_123", "Request validation failed", map[string]interface{}{
//	    "field": "language",
//	    "error": "required",
//	})
func NewValidationError(requestID, message string, validationDetails map[string]interface{}) *APIError {
	return &APIError{
		Type:      ValidationError,
		Message:   message,
		Code:      http.StatusUnprocessableEntity,
		RequestID: requestID,
		Details:   validationDetails,
	}
}

// NewTemplateError is returned when a prompt template fails to render.
// This is a server fault: the handler supplied variables the template does
// not expect, or a configured override is broken.
func NewTemplateError(requestID, template string, err error) *APIError {
	return &APIError{
		Type:      TemplateError,
		Message:   "Failed to render prompt",
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		Details: map[string]interface{}{
			"template": template,
		},
		err: err,
	}
}

// NewProviderError creates an error for a failed LLM call: network errors,
// authentication failures and provider-side errors all land here.
//
// Example:
//
//	err := NewProviderError("req_123", "Failed to generate completion", llmErr)
func NewProviderError(requestID string, message string, err error) *APIError {
	return &APIError{
		Type:      ProviderError,
		Message:   message,
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		err:       err,
	}
}

// NewUnavailableError is a provider error returned while the circuit
// breaker is open.
func NewUnavailableError(requestID string, err error) *APIError {
	return &APIError{
		Type:      ProviderError,
		Message:   "LLM provider temporarily unavailable",
		Code:      http.StatusServiceUnavailable,
		RequestID: requestID,
		err:       err,
	}
}

// NewNotFoundError is used for unknown routes.
func NewNotFoundError(requestID, path string) *APIError {
	return &APIError{
		Type:      NotFoundError,
		Message:   "Not found",
		Code:      http.StatusNotFound,
		RequestID: requestID,
		Details: map[string]interface{}{
			"path": path,
		},
	}
}

// NewInternalError creates an internal server error for anything not
// covered above, such as panics or response encoding failures.
func NewInternalError(requestID string, err error) *APIError {
	return &APIError{
		Type:      InternalError,
		Message:   "An internal error occurred",
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		err:       err,
	}
}
