package handlers

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/matt-hendrie/explain-that-code/errors"
	"github.com/matt-hendrie/explain-that-code/server/processing"
	"go.uber.org/zap"
)

// snippetFragment is the markup served to clients that ask for HTML.
// Model output is escaped.
var snippetFragment = template.Must(template.New("snippet").Parse(`<div class="code-display">
    <div class="language-badge">{{.Language}}</div>
    <div class="code-block">
        <pre><code>{{.CodeSnippet}}</code></pre>
    </div>
</div>
`))

// GenerateHandler serves GET /generate/{language}.
type GenerateHandler struct {
	processor *processing.Processor
	logger    *zap.Logger
}

// NewGenerateHandler creates a generate handler.
func NewGenerateHandler(processor *processing.Processor, logger *zap.Logger) *GenerateHandler {
	return &GenerateHandler{
		processor: processor,
		logger:    logger,
	}
}

// ServeHTTP generates a snippet and responds with JSON, or with an HTML
// fragment when the Accept header is exactly text/html.
func (h *GenerateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger, requestID := requestLogger(h.logger, r)

	language, err := pathParam(r, "language")
	if err != nil {
		writeValidationError(w, logger, requestID, map[string]interface{}{
			"field": "language",
			"error": "invalid percent-encoding",
		})
		return
	}
	if language == "" {
		writeValidationError(w, logger, requestID, map[string]interface{}{
			"field": "language",
			"error": "required",
		})
		return
	}

	snippet, err := h.processor.GenerateSnippet(r.Context(), language)
	if err != nil {
		writeProcessingError(w, logger, requestID, err)
		return
	}

	if r.Header.Get("Accept") == "text/html" {
		h.writeHTML(w, logger, requestID, snippet)
		return
	}
	writeJSON(w, logger, requestID, http.StatusOK, snippet)
}

func (h *GenerateHandler) writeHTML(w http.ResponseWriter, logger *zap.Logger, requestID string, snippet *processing.Snippet) {
	var buf bytes.Buffer
	if err := snippetFragment.Execute(&buf, snippet); err != nil {
		logger.Error("failed to render snippet fragment", zap.Error(err))
		errors.WriteError(w, errors.NewInternalError(requestID, err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
