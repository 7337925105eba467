package usecase

import "fmt"

type ErrorCode string

const (
	ErrorMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
	ErrorInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrorConfig           ErrorCode = "CONFIG_ERROR"
	ErrorRateLimited      ErrorCode = "RATE_LIMITED"
	ErrorUpstreamAuth     ErrorCode = "UPSTREAM_AUTH"
	ErrorUpstream         ErrorCode = "UPSTREAM_ERROR"
	ErrorInvalidResponse  ErrorCode = "INVALID_RESPONSE"
	ErrorInternal         ErrorCode = "INTERNAL_ERROR"
)

// Public messages. Everything else a caller sees comes from the upstream.
const (
	MsgMethodNotAllowed = "method not allowed"
	MsgConfig           = "server configuration error"
	MsgRateLimited      = "rate limit exceeded"
	MsgInvalidAPIKey    = "invalid API key"
	MsgInvalidResponse  = "invalid response from provider"
	MsgInternal         = "internal server error"
)

// Error is a classified failure. Message is safe to return to the caller;
// Reason and Err are for logs only. Status is set when the response status is
// dictated by the upstream rather than by Code.
type Error struct {
	Code    ErrorCode
	Reason  string
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func NewError(code ErrorCode, reason, message string, err error) *Error {
	return &Error{Code: code, Reason: reason, Message: message, Err: err}
}
