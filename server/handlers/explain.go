package handlers

import (
	"net/http"

	"github.com/matt-hendrie/explain-that-code/errors"
	"github.com/matt-hendrie/explain-that-code/server/processing"
	"github.com/matt-hendrie/explain-that-code/server/validation"
	"go.uber.org/zap"
)

// maxBodyBytes bounds the explain-code request body.
const maxBodyBytes = 1 << 20

// ExplainHandler serves POST /explain-code.
type ExplainHandler struct {
	processor *processing.Processor
	logger    *zap.Logger
}

// NewExplainHandler creates an explain handler.
func NewExplainHandler(processor *processing.Processor, logger *zap.Logger) *ExplainHandler {
	return &ExplainHandler{
		processor: processor,
		logger:    logger,
	}
}

func (h *ExplainHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger, requestID := requestLogger(h.logger, r)

	var req processing.CodeExplanationRequest
	if err := validation.DecodeJSON(http.MaxBytesReader(w, r.Body, maxBodyBytes), &req); err != nil {
		apiErr := errors.NewBadRequestError(requestID, "Invalid request body: "+err.Error(), err)
		var decErr *validation.DecodeError
		if errors.As(err, &decErr) && decErr.Field != "" {
			apiErr.Details = map[string]interface{}{"field": decErr.Field}
		}
		errors.LogError(logger, apiErr, requestID)
		errors.WriteError(w, apiErr)
		return
	}

	if err := validation.Struct(req); err != nil {
		details := map[string]interface{}{}
		var verr *validation.Error
		if errors.As(err, &verr) {
			details["fields"] = verr.Fields
		}
		apiErr := errors.NewValidationError(requestID, "Request validation failed", details)
		errors.LogError(logger, apiErr, requestID)
		errors.WriteError(w, apiErr)
		return
	}

	resp, err := h.processor.GradeExplanation(r.Context(), &req)
	if err != nil {
		writeProcessingError(w, logger, requestID, err)
		return
	}

	logger.Debug("explanation graded",
		zap.String("language", resp.Language),
		zap.Bool("rubric_parsed", resp.Rubric != nil),
	)
	writeJSON(w, logger, requestID, http.StatusOK, resp)
}
