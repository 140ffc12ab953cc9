// Package apperr carries the error taxonomy shared by the auth and invite
// flows and its mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"net/http"
)

type Code string

const (
	CodeConfiguration Code = "configuration"
	CodeValidation    Code = "validation"
	CodeUnauthorized  Code = "unauthorized"
	CodeUpstream      Code = "upstream"
	CodeNotFound      Code = "not_found"
	CodeInternal      Code = "internal"
)

// HTTPStatus returns the status code a handler should answer with.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified error. Message is safe to show to clients.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error with the same code and message, so package level
// sentinels work with errors.Is even after a cause was attached.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == e.Message
}

// WithCause returns a copy of e wrapping cause.
func (e *Error) WithCause(cause error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Cause: cause}
}

func Configuration(msg string, cause error) *Error {
	return &Error{Code: CodeConfiguration, Message: msg, Cause: cause}
}

func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

func Unauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

func Upstream(msg string, cause error) *Error {
	return &Error{Code: CodeUpstream, Message: msg, Cause: cause}
}

func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

func Internal(msg string, cause error) *Error {
	return &Error{Code: CodeInternal, Message: msg, Cause: cause}
}

// CodeOf reports the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// StatusOf is CodeOf(err).HTTPStatus().
func StatusOf(err error) int {
	return CodeOf(err).HTTPStatus()
}

// PublicMessage returns the client-facing message for err. Unclassified and
// internal errors collapse to fallback so causes never reach the client.
func PublicMessage(err error, fallback string) string {
	var ae *Error
	if !errors.As(err, &ae) || ae.Code == CodeInternal {
		return fallback
	}
	return ae.Message
}
