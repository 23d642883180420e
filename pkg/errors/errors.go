// Package errors defines the typed error every service returns. The code
// decides the HTTP status and how much of the error reaches the caller.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation       Code = "VALIDATION_ERROR"
	CodeUnauthorized     Code = "UNAUTHORIZED"
	CodePaymentRequired  Code = "PAYMENT_REQUIRED"
	CodeForbidden        Code = "FORBIDDEN"
	CodeNotFound         Code = "NOT_FOUND"
	CodeMethodNotAllowed Code = "METHOD_NOT_ALLOWED"
	CodeConflict         Code = "CONFLICT"
	CodeStateConflict    Code = "STATE_CONFLICT"
	CodeIdempotency      Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit        Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal         Code = "INTERNAL_ERROR"
	CodeUpstream         Code = "UPSTREAM_ERROR"
	CodeDependency       Code = "DEPENDENCY_ERROR"
)

// Metadata is the transport view of a Code.
type Metadata struct {
	HTTPStatus int
	// Retryable tells the client the same request may succeed later.
	Retryable     bool
	PublicMessage string
	// DetailsAllowed lets the typed error's details into the response body.
	DetailsAllowed bool
}

func clientError(status int, msg string, details bool) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: msg, DetailsAllowed: details}
}

func serverError(status int, msg string, details bool) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: msg, DetailsAllowed: details, Retryable: true}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:       clientError(http.StatusBadRequest, "validation failed", true),
	CodeUnauthorized:     clientError(http.StatusUnauthorized, "authentication required", false),
	CodePaymentRequired:  clientError(http.StatusPaymentRequired, "active pass required", true),
	CodeForbidden:        clientError(http.StatusForbidden, "access denied", false),
	CodeNotFound:         clientError(http.StatusNotFound, "resource not found", false),
	CodeMethodNotAllowed: clientError(http.StatusMethodNotAllowed, "method not allowed", false),
	CodeConflict:         clientError(http.StatusConflict, "conflict detected", false),
	CodeStateConflict:    clientError(http.StatusUnprocessableEntity, "state transition disallowed", true),
	CodeIdempotency:      clientError(http.StatusConflict, "idempotency key reused", true),
	CodeRateLimit:        clientError(http.StatusTooManyRequests, "rate limit exceeded", false),
	CodeInternal:         serverError(http.StatusInternalServerError, "internal server error", false),
	// processor failures surface the processor's own message
	CodeUpstream:   serverError(http.StatusInternalServerError, "payment processor error", true),
	CodeDependency: serverError(http.StatusServiceUnavailable, "dependency unavailable", true),
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches code and message to err. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

// Ensure returns err unchanged when it already carries a code, and wraps it
// with code otherwise.
func Ensure(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	if typed := As(err); typed != nil {
		return typed
	}
	return Wrap(code, err, message)
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return string(e.code) + ": " + e.message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost typed error in err's chain.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// HasCode reports whether err's outermost typed error carries code.
func HasCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
