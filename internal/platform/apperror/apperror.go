// Package apperror defines the error taxonomy shared by the scheduling
// domains and its mapping onto HTTP responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Kind classifies an error by what the caller can do about it.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindSlotUnavailable    Kind = "slot_unavailable"
	KindInvalidTransition  Kind = "invalid_transition"
	KindForbidden          Kind = "forbidden"
	KindNotFound           Kind = "not_found"
	KindAlreadyInitialized Kind = "already_initialized"
	KindNotInitialized     Kind = "not_initialized"
	KindInternal           Kind = "internal"
)

// Sentinels for errors.Is comparisons. Any *Error of the same kind matches.
var (
	ErrValidation         = &Error{Kind: KindValidation}
	ErrSlotUnavailable    = &Error{Kind: KindSlotUnavailable}
	ErrInvalidTransition  = &Error{Kind: KindInvalidTransition}
	ErrForbidden          = &Error{Kind: KindForbidden}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrAlreadyInitialized = &Error{Kind: KindAlreadyInitialized}
	ErrNotInitialized     = &Error{Kind: KindNotInitialized}
)

// Error is a classified error carrying the failing operation and a message
// that is safe to return to the caller.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

func Validation(op, format string, args ...interface{}) *Error {
	return newError(KindValidation, op, format, args...)
}

func SlotUnavailable(op, format string, args ...interface{}) *Error {
	return newError(KindSlotUnavailable, op, format, args...)
}

func InvalidTransition(op, format string, args ...interface{}) *Error {
	return newError(KindInvalidTransition, op, format, args...)
}

func Forbidden(op, format string, args ...interface{}) *Error {
	return newError(KindForbidden, op, format, args...)
}

func NotFound(op, format string, args ...interface{}) *Error {
	return newError(KindNotFound, op, format, args...)
}

func AlreadyInitialized(op, format string, args ...interface{}) *Error {
	return newError(KindAlreadyInitialized, op, format, args...)
}

func NotInitialized(op, format string, args ...interface{}) *Error {
	return newError(KindNotInitialized, op, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// HTTPStatus maps a kind to its HTTP status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindSlotUnavailable, KindInvalidTransition, KindAlreadyInitialized:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound, KindNotInitialized:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Body is the JSON error envelope returned by handlers.
type Body struct {
	Error   Kind   `json:"error"`
	Message string `json:"message"`
}

// ToHTTP converts a service error into an echo HTTP error. Internal errors
// are reported without their underlying text.
func ToHTTP(err error) *echo.HTTPError {
	kind := KindOf(err)
	status := HTTPStatus(kind)
	msg := "internal server error"
	if kind != KindInternal {
		var ae *Error
		errors.As(err, &ae)
		msg = ae.Message
		if msg == "" {
			msg = string(kind)
		}
	}
	he := echo.NewHTTPError(status, Body{Error: kind, Message: msg})
	return he.SetInternal(err)
}
