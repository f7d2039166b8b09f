// Package apperr defines the error taxonomy shared by the ledger, the bid
// validator and the HTTP layer.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for the request boundary.
type Kind string

const (
	KindValidation Kind = "validation"
	KindAuth       Kind = "auth"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindStorage    Kind = "storage"
	KindInternal   Kind = "internal"
)

// Error is a classified error. Code is a stable machine-readable identifier
// (e.g. "BidTooLow") and Message is safe to show to clients.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a sentinel error.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Validation creates a validation error with a caller-supplied message.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Code: "ValidationError", Message: message}
}

var (
	ErrNotFound           = New(KindNotFound, "NotFound", "resource not found")
	ErrUserNotFound       = New(KindNotFound, "UserNotFound", "user not found")
	ErrUnauthorized       = New(KindAuth, "Unauthorized", "authentication required")
	ErrForbidden          = New(KindAuth, "Forbidden", "operation not permitted for this user")
	ErrInvalidCredentials = New(KindAuth, "InvalidCredentials", "invalid email or password")
	ErrDuplicateEmail     = New(KindStorage, "DuplicateEmail", "email is already registered")
	ErrForeignKey         = New(KindStorage, "MissingReference", "referenced record does not exist")
)

// As returns the classified error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf reports the kind of err; unclassified errors are internal.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error to the status code used at the request boundary.
func HTTPStatus(err error) int {
	e, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		if e.Code == ErrForbidden.Code {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindStorage:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
