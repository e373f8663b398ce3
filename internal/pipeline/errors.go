package pipeline

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of a pipeline error.
type ErrorType string

const (
	// ErrorTypeValidation indicates a missing or malformed input field.
	ErrorTypeValidation ErrorType = "validation"

	// ErrorTypeNoData indicates the staged selection was empty.
	ErrorTypeNoData ErrorType = "no_data"

	// ErrorTypeStaging indicates a per-request resource could not be allocated.
	ErrorTypeStaging ErrorType = "staging"

	// ErrorTypeRemote indicates the remote operation failed.
	ErrorTypeRemote ErrorType = "remote"

	// ErrorTypeServer indicates an unexpected internal error.
	ErrorTypeServer ErrorType = "server"
)

// genericServerMessage is used when an unstructured error carries no text.
const genericServerMessage = "internal server error"

// Error is the structured error produced by pipeline stages.
type Error struct {
	// Type is the category of error
	Type ErrorType `json:"type"`

	// Message is the human-readable error message
	Message string `json:"message"`

	// Field is the input field that caused the error (validation only)
	Field string `json:"field,omitempty"`

	// StatusCode overrides the status derived from Type
	StatusCode int `json:"-"`

	// Cause is the underlying error, if any
	Cause error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatusCode returns the HTTP status code for this error.
func (e *Error) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}

	switch e.Type {
	case ErrorTypeValidation, ErrorTypeNoData:
		return http.StatusBadRequest
	case ErrorTypeRemote:
		return http.StatusBadGateway
	case ErrorTypeStaging, ErrorTypeServer:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// WithStatusCode sets a specific HTTP status code.
func (e *Error) WithStatusCode(code int) *Error {
	e.StatusCode = code
	return e
}

// WithCause records the underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// ErrValidation creates a validation error for field.
func ErrValidation(field, message string) *Error {
	return &Error{Type: ErrorTypeValidation, Field: field, Message: message}
}

// ErrNoData creates an empty-selection error.
func ErrNoData(message string) *Error {
	return &Error{Type: ErrorTypeNoData, Message: message}
}

// ErrStaging creates a resource allocation error.
func ErrStaging(message string, cause error) *Error {
	return &Error{Type: ErrorTypeStaging, Message: message, Cause: cause}
}

// ErrRemote creates a remote operation error. The cause's text is appended to
// the message so the upstream status or exit code reaches the caller.
func ErrRemote(message string, cause error) *Error {
	if cause != nil {
		message = fmt.Sprintf("%s: %v", message, cause)
	}
	return &Error{Type: ErrorTypeRemote, Message: message, Cause: cause}
}

// ErrServer creates an internal server error.
func ErrServer(message string) *Error {
	return &Error{Type: ErrorTypeServer, Message: message}
}

// ToError converts any error to an *Error. Structured errors are returned as
// is; anything else becomes a server error using the error's own text.
func ToError(err error) *Error {
	if err == nil {
		return ErrServer(genericServerMessage)
	}

	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}

	message := err.Error()
	if message == "" {
		message = genericServerMessage
	}
	return ErrServer(message).WithCause(err)
}
