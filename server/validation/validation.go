// Package validation decodes and validates request bodies and counts
// prompt tokens.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func init() {
	// Report fields by their JSON names so clients see what they sent.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// FieldError describes one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// DecodeError is returned when the body is not valid JSON for the target.
type DecodeError struct {
	Message string
	Field   string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: field %s", e.Message, e.Field)
	}
	return e.Message
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Error is returned when a decoded value fails its validate tags.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// DecodeJSON decodes a single JSON value from r into v.
func DecodeJSON(r io.Reader, v interface{}) error {
	dec := json.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		var typeErr *json.UnmarshalTypeError
		var syntaxErr *json.SyntaxError
		switch {
		case errors.Is(err, io.EOF):
			return &DecodeError{Message: "request body is empty", Err: err}
		case errors.As(err, &typeErr):
			return &DecodeError{
				Message: fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value),
				Field:   typeErr.Field,
				Err:     err,
			}
		case errors.As(err, &syntaxErr):
			return &DecodeError{
				Message: fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset),
				Err:     err,
			}
		default:
			return &DecodeError{Message: "malformed JSON", Err: err}
		}
	}
	return nil
}

// Struct validates v against its validate tags.
func Struct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		var msg string
		switch fe.Tag() {
		case "required":
			msg = fmt.Sprintf("field '%s' is required", fe.Field())
		default:
			msg = fmt.Sprintf("field '%s' failed on '%s'", fe.Field(), fe.Tag())
		}
		fields = append(fields, FieldError{
			Field:   fe.Field(),
			Message: msg,
			Code:    fmt.Sprintf("%s_validation_failed", fe.Tag()),
		})
	}
	return &Error{Fields: fields}
}
