// Package errors provides error response utilities.
package errors

import (
	"errors"
)

// ErrorResponse is the JSON shape clients receive for any error.
// It mirrors the exported fields of APIError and is what tests decode into.
type ErrorResponse struct {
	Type      ErrorType              `json:"type"`
	Message   string                 `json:"message"`
	RequestID string                 `json:"request_id"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// As is a wrapper around errors.As so callers importing this package do
// not need the standard library one under another name.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Is is a wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
