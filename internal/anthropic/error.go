package anthropic

import "net/http"

// Error types of the Anthropic error vocabulary.
const (
	ErrTypeInvalidRequest = "invalid_request_error"
	ErrTypeAuthentication = "authentication_error"
	ErrTypePermission     = "permission_error"
	ErrTypeNotFound       = "not_found_error"
	ErrTypeRateLimit      = "rate_limit_error"
	ErrTypeAPI            = "api_error"
	ErrTypeOverloaded     = "overloaded_error"
	ErrTypeConnection     = "api_connection_error"
)

// ErrorDetail is the inner error object.
type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ErrorResponse is the stable Anthropic-shaped error body.
type ErrorResponse struct {
	Type  string      `json:"type"`
	Error ErrorDetail `json:"error"`
}

// NewErrorResponse wraps a detail in the outer error envelope.
func NewErrorResponse(errType, message string) ErrorResponse {
	return ErrorResponse{Type: "error", Error: ErrorDetail{Type: errType, Message: message}}
}

// ErrorStatus maps an Anthropic error type to its HTTP status code.
func ErrorStatus(errType string) int {
	switch errType {
	case ErrTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrTypeAuthentication:
		return http.StatusUnauthorized
	case ErrTypePermission:
		return http.StatusForbidden
	case ErrTypeNotFound:
		return http.StatusNotFound
	case ErrTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrTypeOverloaded, ErrTypeConnection:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
