package tracker

import (
	"fmt"
	"net/http"
)

// ErrorKind classifies a tracker API failure.
type ErrorKind string

const (
	// KindAuth is a credential failure (HTTP 401).
	KindAuth ErrorKind = "authentication"
	// KindPermission is an authorization failure (HTTP 403).
	KindPermission ErrorKind = "permission"
	// KindNotFound means the issue or resource does not exist (HTTP 404).
	KindNotFound ErrorKind = "not_found"
	// KindValidation means the tracker rejected the request payload
	// (HTTP 400/422), e.g. a missing required field for the issue type.
	KindValidation ErrorKind = "validation"
	// KindInternal covers every other non-2xx response and network failures.
	KindInternal ErrorKind = "tracker"
)

// Error is a typed tracker API failure carrying the original status code and
// response body for diagnostics.
type Error struct {
	Kind       ErrorKind
	Op         string // "create issue", "search issues", ...
	StatusCode int
	Body       string
	Err        error // underlying transport error, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s error %d: %s", e.Op, e.Kind, e.StatusCode, e.Body)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an Error from an HTTP response, classifying the status
// code into the taxonomy.
func NewError(op string, statusCode int, body string) *Error {
	return &Error{Kind: classify(statusCode), Op: op, StatusCode: statusCode, Body: body}
}

// NewTransportError wraps a network-level failure as a KindInternal error.
func NewTransportError(op string, err error) *Error {
	return &Error{Kind: KindInternal, Op: op, Err: err}
}

func classify(status int) ErrorKind {
	switch status {
	case http.StatusUnauthorized:
		return KindAuth
	case http.StatusForbidden:
		return KindPermission
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	default:
		return KindInternal
	}
}
