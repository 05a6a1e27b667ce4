package errors

import (
	stderrors "errors"
	"net/http"
)

// HTTPError represents an error with an associated HTTP status code.
type HTTPError struct {
	Code    int
	Message string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTPError with the given code and message.
func NewHTTPError(code int, message string) *HTTPError {
	return &HTTPError{
		Code:    code,
		Message: message,
	}
}

// Helper for common errors
var (
	ErrUnauthorized = func(msg string) *HTTPError { return NewHTTPError(http.StatusUnauthorized, msg) }
)

// StatusFor maps a domain error to the HTTP status the API should return.
func StatusFor(err error) int {
	switch {
	case stderrors.Is(err, ErrInvalidInterval),
		stderrors.Is(err, ErrDuplicateActiveBooking):
		return http.StatusBadRequest
	case stderrors.Is(err, ErrNoSlotAvailable):
		return http.StatusConflict
	case stderrors.Is(err, ErrCancellationWindowClosed),
		stderrors.Is(err, ErrNotCancellable),
		stderrors.Is(err, ErrNotConfirmed),
		stderrors.Is(err, ErrNotActive):
		return http.StatusConflict
	case stderrors.Is(err, ErrBookingNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
