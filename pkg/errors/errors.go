package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors for the failure classes the storefront client
// distinguishes. Callers classify with errors.Is.
var (
	// ErrNetwork means no HTTP response was received at all.
	ErrNetwork = errors.New("network failure")
	// ErrAuth means the server rejected the credential (401) and the
	// one-shot refresh either failed or was not applicable.
	ErrAuth = errors.New("authentication failure")
	// ErrNotAuthenticated means the operation requires a signed-in user and
	// none is held. Raised locally, before any request is issued.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrValidation means client-side input validation failed pre-flight.
	ErrValidation = errors.New("validation failure")
	ErrNotFound   = errors.New("resource not found")
	ErrForbidden  = errors.New("forbidden")
	// ErrDomain means the server answered with a business error (4xx/5xx
	// with a server-supplied message, e.g. "insufficient stock").
	ErrDomain = errors.New("domain failure")
)

// APIError is a structured error carrying the remote status code and the
// server-supplied code/message for a non-2xx response.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (status %d)", e.Code, e.Message, e.Status)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Network wraps a transport-level failure where no response was received.
func Network(err error) error {
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}

// NotAuthenticated creates a local not-signed-in error for the given operation.
func NotAuthenticated(operation string) error {
	return fmt.Errorf("%s: %w", operation, ErrNotAuthenticated)
}

// Validation creates a pre-flight validation error with the given message.
func Validation(message string) error {
	return fmt.Errorf("%w: %s", ErrValidation, message)
}

// Forbidden creates a local authorization error (e.g. an admin-only call
// attempted by a customer account).
func Forbidden(message string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, message)
}

// FromStatus builds an APIError from a response status and server-supplied
// code/message, classified under the matching sentinel.
func FromStatus(status int, code, message string) *APIError {
	e := &APIError{Status: status, Code: code, Message: message, Err: ErrDomain}
	switch status {
	case http.StatusUnauthorized:
		e.Err = ErrAuth
	case http.StatusNotFound:
		e.Err = ErrNotFound
	case http.StatusForbidden:
		e.Err = ErrForbidden
	}
	if message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

// Status returns the remote HTTP status carried by err, or 0 for errors that
// never reached the server.
func Status(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
