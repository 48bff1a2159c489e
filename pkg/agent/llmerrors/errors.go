// Package llmerrors classifies provider failures so callers can decide
// between retrying, backing off, and giving up.
package llmerrors

import "fmt"

// ErrorType categorizes an LLM provider failure.
type ErrorType string

const (
	// ErrorTypeAuth means the API key is missing, wrong, or lacks access.
	ErrorTypeAuth ErrorType = "auth"
	// ErrorTypeRateLimit means the provider throttled the request.
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeTransient covers timeouts, resets, and 5xx responses.
	ErrorTypeTransient ErrorType = "transient"
	// ErrorTypeBadPrompt means the request itself was malformed.
	ErrorTypeBadPrompt ErrorType = "bad_prompt"
	// ErrorTypeEmptyResponse means the provider returned no content.
	ErrorTypeEmptyResponse ErrorType = "empty_response"
	// ErrorTypeUnknown is everything else.
	ErrorTypeUnknown ErrorType = "unknown"
)

// Error is a classified provider error.
type Error struct {
	Cause      error
	Type       ErrorType
	Message    string
	StatusCode int
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Type, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a classified error with a message.
func NewError(t ErrorType, msg string) *Error {
	return &Error{Type: t, Message: msg}
}

// NewErrorWithCause creates a classified error wrapping an underlying one.
func NewErrorWithCause(t ErrorType, cause error, msg string) *Error {
	return &Error{Type: t, Message: msg, Cause: cause}
}

// NewErrorWithStatus creates a classified error carrying an HTTP status.
func NewErrorWithStatus(t ErrorType, status int, msg string) *Error {
	return &Error{Type: t, Message: msg, StatusCode: status}
}

// IsRetryable reports whether the failure is worth retrying. Rate limits and
// transient failures are; auth and prompt errors are not.
func IsRetryable(err error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	switch e.Type {
	case ErrorTypeRateLimit, ErrorTypeTransient, ErrorTypeEmptyResponse:
		return true
	default:
		return false
	}
}
