// Package verrs defines the error taxonomy shared by the verification
// session engines. Every failure that crosses a session boundary is wrapped
// with a Code so callers can branch on category without string matching,
// and a Message safe to surface to the field agent.
package verrs

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a verification error.
type Code string

const (
	// CodeInput marks locally detectable input problems (empty or short
	// subject code). No network call was made.
	CodeInput Code = "input"

	// CodeNotFound marks a lookup that returned zero matches.
	CodeNotFound Code = "not_found"

	// CodeConflict marks a request that contradicts session state, such as
	// an ambiguous subject lookup or finishing an empty session.
	CodeConflict Code = "conflict"

	// CodeTransport marks a rejected Remote Gateway call.
	CodeTransport Code = "transport"

	// CodeSensor marks camera or geolocation failures.
	CodeSensor Code = "sensor"

	// CodeUnauthorized marks a missing or invalid bearer token.
	CodeUnauthorized Code = "unauthorized"

	// CodeInternal is the fallback for unexpected failures.
	CodeInternal Code = "internal"
)

// Error carries a code, a user-facing message and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a coded error with a user-facing message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf builds a coded error with a formatted user-facing message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. A nil err returns
// nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var ve *Error
	for errors.As(err, &ve) {
		if ve.Code == code {
			return true
		}
		err = ve.Err
	}
	return false
}

// UserMessage extracts the outermost user-facing message, or a generic
// fallback for uncoded errors. Nil yields the empty string.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Message
	}
	return "Something went wrong. Please try again."
}

// CodeOf returns the outermost code, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps an error code to the HTTP status the transport layer
// responds with.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInput:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeTransport:
		return http.StatusBadGateway
	case CodeSensor:
		return http.StatusFailedDependency
	default:
		return http.StatusInternalServerError
	}
}
