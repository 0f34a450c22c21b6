package translate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"claudebridge/internal/anthropic"
)

func TestErrorFromUpstreamClassification(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		body     string
		wantType string
	}{
		{
			name:     "invalid api key",
			status:   401,
			body:     `{"error":{"type":"invalid_api_key","message":"bad key"}}`,
			wantType: anthropic.ErrTypeAuthentication,
		},
		{
			name:     "permission denied",
			status:   403,
			body:     `{"error":{"type":"permission_denied","message":"no"}}`,
			wantType: anthropic.ErrTypeAuthentication,
		},
		{
			name:     "rate limited",
			status:   429,
			body:     `{"error":{"type":"rate_limit_exceeded","message":"slow down"}}`,
			wantType: anthropic.ErrTypeRateLimit,
		},
		{
			name:     "validation",
			status:   422,
			body:     `{"error":{"type":"validation_error","message":"bad field"}}`,
			wantType: anthropic.ErrTypeInvalidRequest,
		},
		{
			name:     "invalid request",
			status:   400,
			body:     `{"error":{"type":"invalid_request_error","message":"bad"}}`,
			wantType: anthropic.ErrTypeInvalidRequest,
		},
		{
			name:     "model not found",
			status:   404,
			body:     `{"error":{"type":"model_not_found","message":"nope"}}`,
			wantType: anthropic.ErrTypeNotFound,
		},
		{
			name:     "overloaded",
			status:   503,
			body:     `{"error":{"type":"server_overloaded","message":"busy"}}`,
			wantType: anthropic.ErrTypeOverloaded,
		},
		{
			name:     "unknown type falls back to api_error",
			status:   500,
			body:     `{"error":{"type":"mystery","message":"boom"}}`,
			wantType: anthropic.ErrTypeAPI,
		},
		{
			name:     "no type, status drives classification",
			status:   429,
			body:     `{"error":{"message":"too many"}}`,
			wantType: anthropic.ErrTypeRateLimit,
		},
		{
			name:     "code field used when type absent",
			status:   400,
			body:     `{"error":{"code":"invalid_request_error","message":"bad"}}`,
			wantType: anthropic.ErrTypeInvalidRequest,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			detail := ErrorFromUpstream(tc.status, []byte(tc.body))
			assert.Equal(t, tc.wantType, detail.Type)
			assert.NotEmpty(t, detail.Message)
		})
	}
}

func TestErrorFromUpstreamUnparseableBody(t *testing.T) {
	detail := ErrorFromUpstream(502, []byte("<html>bad gateway</html>"))
	assert.Equal(t, anthropic.ErrTypeOverloaded, detail.Type)
	assert.Contains(t, detail.Message, "bad gateway")
}

func TestErrorFromUpstreamEmptyBody(t *testing.T) {
	detail := ErrorFromUpstream(500, nil)
	assert.Equal(t, anthropic.ErrTypeAPI, detail.Type)
	assert.Contains(t, detail.Message, "500")
}

func TestErrorFromTransport(t *testing.T) {
	detail := ErrorFromTransport(errors.New("dial tcp: connection refused"))
	assert.Equal(t, anthropic.ErrTypeConnection, detail.Type)
	assert.Contains(t, detail.Message, "connection refused")
}
