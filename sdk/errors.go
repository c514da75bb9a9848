package laoshi

import (
	"fmt"
	"net/url"
)

// Error is the canonical error crossing every component boundary in the SDK.
// Failures are surfaced as typed values; nothing in the SDK panics past a
// component boundary.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    string    `json:"code,omitempty"`

	// Status is the HTTP status that produced the error, when there was one.
	Status int `json:"-"`

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause. AbortError and TimeoutError are
// distinguished by cause (context.Canceled vs context.DeadlineExceeded),
// never by message text.
func (e *Error) Unwrap() error {
	return e.cause
}

// IsRetryable reports whether the executor may retry the failed attempt.
// Only deadline-exceeded attempts are retried; explicit cancellation and
// server-side failures are not.
func (e *Error) IsRetryable() bool {
	return e.Type == ErrTimeout
}

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrPermissionDenied ErrorType = "permission_denied"
	ErrTimeout          ErrorType = "timeout_error"
	ErrAbort            ErrorType = "abort_error"
	ErrAuth             ErrorType = "auth_error"
	ErrServer           ErrorType = "server_error"
	ErrAudioUnavailable ErrorType = "audio_unavailable"
)

// NewPermissionDeniedError creates a permission denied error.
func NewPermissionDeniedError(message string) *Error {
	return &Error{Type: ErrPermissionDenied, Message: message}
}

// NewTimeoutError creates a deadline-exceeded error.
func NewTimeoutError(message string, cause error) *Error {
	return &Error{Type: ErrTimeout, Message: message, cause: cause}
}

// NewAbortError creates an explicit-cancellation error.
func NewAbortError(message string, cause error) *Error {
	return &Error{Type: ErrAbort, Message: message, cause: cause}
}

// NewAuthError creates an authentication error.
func NewAuthError(message string) *Error {
	return &Error{Type: ErrAuth, Message: message, Status: 401}
}

// NewServerError creates an error for a non-2xx response other than 401.
func NewServerError(status int, message string) *Error {
	return &Error{Type: ErrServer, Message: message, Status: status}
}

// NewAudioUnavailableError marks a turn whose text succeeded but which
// produced no playable audio and no server-supplied reason.
func NewAudioUnavailableError(message string) *Error {
	return &Error{Type: ErrAudioUnavailable, Message: message}
}

// TransportError represents HTTP transport-level failures (DNS, connection
// reset, TLS handshake, etc.) while talking to the tutor API. Deadline and
// cancellation failures are reported as *Error instead.
//
// Use errors.As(err, &te) with te *TransportError to distinguish transport
// failures from canonical API errors (*Error).
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Op != "" && e.URL != "":
		return fmt.Sprintf("transport error during %s %s: %v", e.Op, redactURLUserInfo(e.URL), e.Err)
	case e.Op != "":
		return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("transport error: %v", e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func redactURLUserInfo(raw string) string {
	if raw == "" {
		return raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed == nil {
		return raw
	}
	parsed.User = nil
	return parsed.String()
}
