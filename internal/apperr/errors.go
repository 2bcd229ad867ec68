package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error classes. Callers wrap one of these with context and handlers map
// the class to a status code through HTTPStatus.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrStorage      = errors.New("storage error")
)

// Validation returns an ErrValidation carrying a human readable message.
func Validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound returns an ErrNotFound carrying a human readable message.
func NotFound(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Storage wraps a backend failure so that both the class and the cause
// survive errors.Is.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &storageError{op: op, err: err}
}

type storageError struct {
	op  string
	err error
}

func (e *storageError) Error() string { return fmt.Sprintf("%s: %v", e.op, e.err) }

func (e *storageError) Unwrap() []error { return []error{ErrStorage, e.err} }

// HTTPStatus maps an error class to the response code used at the handler
// boundary.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the message returned to API clients. Storage failures
// get a generic message; the cause goes to the log only.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	if HTTPStatus(err) == http.StatusInternalServerError {
		return "internal error, please retry"
	}
	return err.Error()
}
