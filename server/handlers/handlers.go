// Package handlers provides the HTTP handlers for the explainthat server.
//
// Handlers decode and validate input, hand it to the processor and shape
// the result. Errors from below are translated into *errors.APIError here
// and nowhere else.
package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/matt-hendrie/explain-that-code/errors"
	"github.com/matt-hendrie/explain-that-code/server/circuitbreaker"
	"github.com/matt-hendrie/explain-that-code/server/middleware"
	"github.com/matt-hendrie/explain-that-code/server/processing"
	"go.uber.org/zap"
)

// requestLogger returns a logger carrying the request's ID, method and path.
func requestLogger(logger *zap.Logger, r *http.Request) (*zap.Logger, string) {
	requestID := middleware.GetRequestID(r.Context())
	return logger.With(
		zap.String("request_id", requestID),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	), requestID
}

// pathParam returns the decoded value of a URL parameter. chi matches
// against the escaped path when the request has one (e.g. /generate/C%2B%2B),
// in which case the parameter still carries its percent-encoding.
func pathParam(r *http.Request, name string) (string, error) {
	value := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return value, nil
	}
	return url.PathUnescape(value)
}

// writeValidationError responds 422 for a single invalid field.
func writeValidationError(w http.ResponseWriter, logger *zap.Logger, requestID string, details map[string]interface{}) {
	apiErr := errors.NewValidationError(requestID, "Request validation failed", details)
	errors.LogError(logger, apiErr, requestID)
	errors.WriteError(w, apiErr)
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, requestID string, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		logger.Error("failed to encode response", zap.Error(err))
		errors.WriteError(w, errors.NewInternalError(requestID, err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// processingError maps an error from the processor to the API error the
// client sees.
func processingError(requestID string, err error) *errors.APIError {
	var renderErr *processing.RenderError
	switch {
	case errors.As(err, &renderErr):
		return errors.NewTemplateError(requestID, renderErr.Template, err)
	case errors.Is(err, processing.ErrUnknownTemplate):
		return errors.NewTemplateError(requestID, "", err)
	case errors.Is(err, processing.ErrPromptTooLarge):
		return errors.NewValidationError(requestID, "Prompt exceeds the token limit", map[string]interface{}{
			"error": err.Error(),
		})
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		return errors.NewUnavailableError(requestID, err)
	default:
		return errors.NewProviderError(requestID, "Failed to generate completion", err)
	}
}

func writeProcessingError(w http.ResponseWriter, logger *zap.Logger, requestID string, err error) {
	apiErr := processingError(requestID, err)
	errors.LogError(logger, apiErr, requestID)
	errors.WriteError(w, apiErr)
}
