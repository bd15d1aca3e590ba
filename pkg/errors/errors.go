package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotFound         = errors.New("not found")
	ErrArtifactMissing  = errors.New("artifact missing")
	ErrSchemaMismatch   = errors.New("schema mismatch")
	ErrNotFitted        = errors.New("not fitted")
	ErrInternal         = errors.New("internal error")
	ErrTimeout          = errors.New("operation timed out")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// AppError attaches an HTTP status and a caller-safe message to a sentinel.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
	Fields     map[string]string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Invalid builds a 400 error carrying per-field messages.
func Invalid(message string, fields map[string]string) *AppError {
	return &AppError{
		Err:        ErrInvalidInput,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Fields:     fields,
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrArtifactMissing):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// IsClientError reports whether err was caused by the caller's input.
func IsClientError(err error) bool {
	code := HTTPStatusCode(err)
	return code >= 400 && code < 500
}
