// Package apperr is the error vocabulary shared by services and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/safar/storefront/internal/database"
)

type Code string

const (
	CodeValidation      Code = "VALIDATION"
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeUpstream        Code = "UPSTREAM_FAILURE"
	CodeInternal        Code = "INTERNAL"
)

func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUpstream:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Error carries a stable code and a message safe to show to API clients.
// Err holds the underlying cause for logging only.
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

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func Validation(message string) *Error   { return New(CodeValidation, message) }
func NotFound(message string) *Error     { return New(CodeNotFound, message) }
func Conflict(message string) *Error     { return New(CodeConflict, message) }
func Forbidden(message string) *Error    { return New(CodeForbidden, message) }
func Unauthenticated(message string) *Error {
	return New(CodeUnauthenticated, message)
}

// CodeOf reports the code of err, INTERNAL for errors outside the taxonomy.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// FromStore translates a datastore error. Errors already in the taxonomy pass
// through, and anything unexpected becomes INTERNAL.
func FromStore(err error, what string) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}

	switch {
	case errors.Is(err, database.ErrNotFound):
		return Wrap(CodeNotFound, what+" not found", err)
	case errors.Is(err, database.ErrDuplicate):
		return Wrap(CodeConflict, what+" already exists", err)
	case errors.Is(err, database.ErrInsufficientStock):
		return Wrap(CodeConflict, "insufficient stock", err)
	case errors.Is(err, database.ErrReferenced):
		return Wrap(CodeConflict, what+" is still in use", err)
	case errors.Is(err, database.ErrInvalidTransition):
		return Wrap(CodeConflict, what+" cannot change to the requested state", err)
	case errors.Is(err, database.ErrCheckFailed):
		return Wrap(CodeValidation, what+" violates a data constraint", err)
	}
	return Wrap(CodeInternal, "internal error", err)
}
