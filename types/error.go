package types

import (
	"errors"
	"fmt"
)

// ErrorKind represents a unified error kind across the module.
// Kinds are surfaced by name so hosts can branch without type assertions.
type ErrorKind string

const (
	ErrConfigMissing    ErrorKind = "CONFIG_MISSING"
	ErrBadInput         ErrorKind = "BAD_INPUT"
	ErrAuthChallenge    ErrorKind = "AUTH_CHALLENGE"
	ErrProviderRejected ErrorKind = "PROVIDER_REJECTED"
	ErrContentRejected  ErrorKind = "CONTENT_REJECTED"
	ErrTimeout          ErrorKind = "TIMEOUT"
	ErrTruncated        ErrorKind = "TRUNCATED"
	ErrDownload         ErrorKind = "DOWNLOAD"
	ErrUnsupportedSize  ErrorKind = "UNSUPPORTED_SIZE"
	ErrInternal         ErrorKind = "INTERNAL"
)

// Error represents a structured error with kind, message, and metadata.
// Partial generation context (job id, last progress) travels with the
// error so callers can render it even on failure.
type Error struct {
	Kind         ErrorKind `json:"kind"`
	Message      string    `json:"message"`
	HTTPStatus   int       `json:"http_status,omitempty"`
	Retryable    bool      `json:"retryable"`
	Provider     string    `json:"provider,omitempty"`
	JobID        string    `json:"job_id,omitempty"`
	LastProgress int       `json:"last_progress,omitempty"`
	Cause        error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given kind and message.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// WithJob attaches job context gathered before the failure.
func (e *Error) WithJob(jobID string, lastProgress int) *Error {
	e.JobID = jobID
	e.LastProgress = lastProgress
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// KindOf extracts the error kind from an error, or "" for foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
