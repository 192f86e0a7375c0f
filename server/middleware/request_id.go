// Package middleware provides various middleware functions for HTTP handlers.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/matt-hendrie/explain-that-code/errors"
)

// maxRequestIDLength bounds client supplied IDs before they reach logs.
const maxRequestIDLength = 128

// RequestID middleware adds a request ID to the context and sets it in
// the response header. A client supplied X-Request-ID is reused.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(errors.RequestIDHeader)
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.New().String()
			r.Header.Set(errors.RequestIDHeader, requestID)
		}

		w.Header().Set(errors.RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
