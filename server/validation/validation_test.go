package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type explainRequest struct {
	Language        string  `json:"language" validate:"required"`
	CodeSnippet     *string `json:"code_snippet" validate:"required"`
	UserExplanation *string `json:"user_explanation" validate:"required"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantErr   bool
		wantField string
		wantMsg   string
	}{
		{
			name: "valid",
			body: `{"language": "Go", "code_snippet": "x", "user_explanation": "y"}`,
		},
		{
			name:    "empty body",
			body:    "",
			wantErr: true,
			wantMsg: "request body is empty",
		},
		{
			name:    "malformed",
			body:    `{"language": "Go",`,
			wantErr: true,
			wantMsg: "malformed JSON",
		},
		{
			name:      "wrong type",
			body:      `{"language": 42}`,
			wantErr:   true,
			wantField: "language",
			wantMsg:   "expected string, got number",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req explainRequest
			err := DecodeJSON(strings.NewReader(tt.body), &req)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, "Go", req.Language)
				return
			}

			var decErr *DecodeError
			require.True(t, errors.As(err, &decErr))
			assert.Equal(t, tt.wantField, decErr.Field)
			assert.Contains(t, decErr.Message, tt.wantMsg)
		})
	}
}

func TestStruct(t *testing.T) {
	empty := ""
	snippet := "fmt.Println(1)"

	tests := []struct {
		name       string
		req        explainRequest
		wantFields []string
	}{
		{
			name: "valid",
			req:  explainRequest{Language: "Go", CodeSnippet: &snippet, UserExplanation: &snippet},
		},
		{
			name: "empty strings are present",
			req:  explainRequest{Language: "Go", CodeSnippet: &empty, UserExplanation: &empty},
		},
		{
			name:       "missing language",
			req:        explainRequest{CodeSnippet: &snippet, UserExplanation: &snippet},
			wantFields: []string{"language"},
		},
		{
			name:       "everything missing",
			req:        explainRequest{},
			wantFields: []string{"language", "code_snippet", "user_explanation"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.req)
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}

			var verr *Error
			require.True(t, errors.As(err, &verr))
			var got []string
			for _, f := range verr.Fields {
				got = append(got, f.Field)
				assert.Equal(t, "required_validation_failed", f.Code)
				assert.Equal(t, "field '"+f.Field+"' is required", f.Message)
			}
			assert.Equal(t, tt.wantFields, got)
		})
	}
}

func TestDecodeThenValidateMissingField(t *testing.T) {
	var req explainRequest
	require.NoError(t, DecodeJSON(strings.NewReader(`{"language": "Go", "code_snippet": ""}`), &req))

	err := Struct(req)
	var verr *Error
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "user_explanation", verr.Fields[0].Field)
	assert.Contains(t, err.Error(), "field 'user_explanation' is required")
}
