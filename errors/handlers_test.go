package errors

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestErrorHandler(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name         string
		handler      http.Handler
		expectedCode int
	}{
		{
			name: "normal handler",
			handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}),
			expectedCode: http.StatusOK,
		},
		{
			name: "panicking handler",
			handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				panic("test panic")
			}),
			expectedCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			rr := httptest.NewRecorder()
			rr.Header().Set(RequestIDHeader, "test-request-id")

			handler := ErrorHandler(logger)(tt.handler)
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.expectedCode {
				t.Errorf("handler returned wrong status code: got %v want %v",
					rr.Code, tt.expectedCode)
			}
		})
	}
}

func TestLogError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	requestID := "test-request-id"

	LogError(logger, NewValidationError(requestID, "test error", nil), requestID)
	LogError(logger, NewProviderError(requestID, "upstream failed", errors.New("timeout")), requestID)
	LogError(logger, errors.New("plain"), requestID)

	entries := logs.AllUntimed()
	if len(entries) != 3 {
		t.Fatalf("expected 3 log entries, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Errorf("client error should log at warn, got %v", entries[0].Level)
	}
	if entries[1].Level != zapcore.ErrorLevel {
		t.Errorf("server error should log at error, got %v", entries[1].Level)
	}
	if entries[2].Message != "unexpected error" {
		t.Errorf("unexpected message for plain error: %s", entries[2].Message)
	}
	if entries[1].ContextMap()["request_id"] != requestID {
		t.Error("request_id missing from log context")
	}
}
