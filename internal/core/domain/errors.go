package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors.
var (
	// ErrNotFound indicates a catalog entry or resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidOperation indicates an Operation was constructed with fields
	// that do not match its kind.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrMissingParam indicates a URL template placeholder had no value.
	ErrMissingParam = errors.New("missing parameter")

	// ErrNetwork indicates the request never produced an HTTP response.
	ErrNetwork = errors.New("network error")

	// ErrHTTPStatus indicates the server answered with a non-2xx status.
	ErrHTTPStatus = errors.New("unexpected http status")

	// ErrParse indicates the response body did not match the expected format.
	ErrParse = errors.New("response parse error")

	// ErrAuth indicates token acquisition or refresh failed.
	ErrAuth = errors.New("authentication failed")

	// ErrSignedOut indicates an operation needs a token but none is held.
	ErrSignedOut = errors.New("not signed in")
)

// ConstructionError reports an Operation whose fields contradict its kind.
type ConstructionError struct {
	Name   string
	Kind   OperationType
	Reason string
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("operation %q (%s): %s", e.Name, e.Kind, e.Reason)
}

func (e *ConstructionError) Unwrap() error {
	return ErrInvalidOperation
}

// StatusError carries a non-2xx response verbatim so callers can render it
// or react to well-known status codes.
type StatusError struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Cause is the provider-specific classification of the status, if any.
	Cause error
}

func (e *StatusError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("status %d: %v", e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("status %d", e.StatusCode)
}

// Unwrap exposes both ErrHTTPStatus and the provider classification.
func (e *StatusError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrHTTPStatus, e.Cause}
	}
	return []error{ErrHTTPStatus}
}

// ParseError reports a 2xx response whose body could not be decoded.
type ParseError struct {
	StatusCode  int
	ContentType string
	Body        []byte
	Err         error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("decode %s response (status %d): %v", e.ContentType, e.StatusCode, e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrParse, e.Err}
}

// StatusCode extracts the HTTP status from a failure, or 0 when the failure
// never reached the server.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.StatusCode
	}
	return 0
}
