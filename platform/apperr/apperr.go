// Package apperr defines the typed errors services return. httpkit.HandleError
// maps them onto HTTP responses and the scheduler uses the kind to decide
// whether a task is worth retrying.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind represents the category of error.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindValidation
	// KindConflict covers concurrent modification and runs already in progress.
	KindConflict
	// KindUnavailable means an upstream (registry, email provider) could not
	// be reached at all. Retrying later may succeed.
	KindUnavailable
	// KindConfiguration means the deployment is wrong: a rejected API key,
	// a template that does not parse. Retrying will not help.
	KindConfiguration
	KindInternal
)

var kinds = map[Kind]struct {
	name   string
	status int
}{
	KindNotFound:      {"not_found", http.StatusNotFound},
	KindValidation:    {"validation", http.StatusBadRequest},
	KindConflict:      {"conflict", http.StatusConflict},
	KindUnavailable:   {"unavailable", http.StatusServiceUnavailable},
	KindConfiguration: {"configuration", http.StatusInternalServerError},
	KindInternal:      {"internal", http.StatusInternalServerError},
}

// String returns the wire name of the kind.
func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return "unknown"
}

// Error is a domain error with a typed Kind.
type Error struct {
	Kind    Kind
	Message string
	Op      string
	Err     error
	Details interface{}
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the response status for the error's kind. Unknown kinds
// are treated as bad requests.
func (e *Error) HTTPStatus() int {
	if info, ok := kinds[e.Kind]; ok {
		return info.status
	}
	return http.StatusBadRequest
}

// New creates a domain error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WithOp sets the failing operation and returns e.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithDetails attaches a payload rendered alongside the message.
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

func NotFound(message string) *Error      { return New(KindNotFound, message) }
func Validation(message string) *Error    { return New(KindValidation, message) }
func Conflict(message string) *Error      { return New(KindConflict, message) }
func Unavailable(message string) *Error   { return New(KindUnavailable, message) }
func Configuration(message string) *Error { return New(KindConfiguration, message) }

// GetKind extracts the kind from an error chain, or KindUnknown.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}
