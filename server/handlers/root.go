package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// ItemResponse echoes an item lookup. Q is null when the query parameter
// was not sent.
type ItemResponse struct {
	ItemID int     `json:"item_id"`
	Q      *string `json:"q"`
}

// Root returns the static greeting.
func Root(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log, requestID := requestLogger(logger, r)
		writeJSON(w, log, requestID, http.StatusOK, map[string]string{"Hello": "World"})
	}
}

// Item echoes the item_id path parameter and optional q query parameter.
func Item(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log, requestID := requestLogger(logger, r)

		raw, err := pathParam(r, "item_id")
		if err != nil {
			writeValidationError(w, log, requestID, map[string]interface{}{
				"field": "item_id",
				"error": "invalid percent-encoding",
			})
			return
		}
		id, err := strconv.Atoi(raw)
		if err != nil {
			writeValidationError(w, log, requestID, map[string]interface{}{
				"field": "item_id",
				"error": "must be an integer",
				"value": raw,
			})
			return
		}

		resp := ItemResponse{ItemID: id}
		if vals, ok := r.URL.Query()["q"]; ok && len(vals) > 0 {
			resp.Q = &vals[0]
		}
		writeJSON(w, log, requestID, http.StatusOK, resp)
	}
}
