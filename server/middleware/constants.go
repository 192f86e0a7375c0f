package middleware

import "context"

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
)

// GetRequestID returns the request ID stored by RequestID, or "".
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
