package translate

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"claudebridge/internal/anthropic"
)

// ErrorFromUpstream converts an upstream error body into the Anthropic
// error vocabulary. The upstream error type and message are probed from
// the body; classification is by substring so that the many provider
// spellings (invalid_api_key, rate_limit_exceeded, model_not_found, ...)
// land in the right bucket. An unparseable body becomes an api_error
// carrying the HTTP status.
func ErrorFromUpstream(statusCode int, body []byte) anthropic.ErrorDetail {
	errType := gjson.GetBytes(body, "error.type").String()
	if errType == "" {
		errType = gjson.GetBytes(body, "error.code").String()
	}
	message := gjson.GetBytes(body, "error.message").String()
	if message == "" {
		message = strings.TrimSpace(string(body))
	}
	if message == "" {
		message = fmt.Sprintf("upstream returned HTTP %d", statusCode)
	}

	return anthropic.ErrorDetail{
		Type:    classifyUpstreamError(errType, statusCode),
		Message: message,
	}
}

func classifyUpstreamError(upstreamType string, statusCode int) string {
	t := strings.ToLower(upstreamType)
	switch {
	case contains(t, "auth", "permission", "key"):
		return anthropic.ErrTypeAuthentication
	case contains(t, "rate_limit", "rate limit", "quota"):
		return anthropic.ErrTypeRateLimit
	case contains(t, "invalid_request", "invalid request", "validation", "bad_request", "bad request"):
		return anthropic.ErrTypeInvalidRequest
	case contains(t, "not_found", "not found"):
		return anthropic.ErrTypeNotFound
	case contains(t, "overloaded", "capacity", "unavailable"):
		return anthropic.ErrTypeOverloaded
	}

	// No recognisable type: fall back on the HTTP status.
	switch statusCode {
	case 400:
		return anthropic.ErrTypeInvalidRequest
	case 401, 403:
		return anthropic.ErrTypeAuthentication
	case 404:
		return anthropic.ErrTypeNotFound
	case 429:
		return anthropic.ErrTypeRateLimit
	case 502, 503, 529:
		return anthropic.ErrTypeOverloaded
	default:
		return anthropic.ErrTypeAPI
	}
}

func contains(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ErrorFromTransport converts a connection-level failure (dial, TLS,
// timeout, broken body) into an api_connection_error.
func ErrorFromTransport(err error) anthropic.ErrorDetail {
	return anthropic.ErrorDetail{
		Type:    anthropic.ErrTypeConnection,
		Message: fmt.Sprintf("failed to reach upstream: %v", err),
	}
}
