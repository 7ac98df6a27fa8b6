package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
)

type ErrorType string

const (
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeValidation   ErrorType = "VALIDATION"
	ErrorTypeInternal     ErrorType = "INTERNAL"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeUnavailable  ErrorType = "UNAVAILABLE"
)

type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    int       `json:"code"`
	Details any       `json:"details,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error of the same type, so callers can test categories with
// errors.Is(err, errors.NotFound("")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

func NotFound(message string) *Error {
	return &Error{
		Type:    ErrorTypeNotFound,
		Message: message,
		Code:    http.StatusNotFound,
	}
}

func ValidationError(message string, details any) *Error {
	return &Error{
		Type:    ErrorTypeValidation,
		Message: message,
		Code:    http.StatusBadRequest,
		Details: details,
	}
}

func Internal(message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeInternal,
		Message: message,
		Code:    http.StatusInternalServerError,
		cause:   cause,
	}
}

func Unauthorized(message string) *Error {
	return &Error{
		Type:    ErrorTypeUnauthorized,
		Message: message,
		Code:    http.StatusUnauthorized,
	}
}

// Unavailable reports that the review service could not be reached or refused
// to serve the request.
func Unavailable(message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeUnavailable,
		Message: message,
		Code:    http.StatusServiceUnavailable,
		cause:   cause,
	}
}

func IsNotFound(err error) bool {
	return stderrors.Is(err, &Error{Type: ErrorTypeNotFound})
}

func IsUnavailable(err error) bool {
	return stderrors.Is(err, &Error{Type: ErrorTypeUnavailable})
}

// IsAbsent reports whether err is one of the recoverable absence conditions:
// the service is unavailable or the requested object does not exist.
func IsAbsent(err error) bool {
	return IsNotFound(err) || IsUnavailable(err)
}

// Write renders err as JSON. Errors that are not *Error become INTERNAL.
func Write(w http.ResponseWriter, err error) {
	var e *Error
	if !stderrors.As(err, &e) {
		e = Internal("internal error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Code)
	json.NewEncoder(w).Encode(e)
}
