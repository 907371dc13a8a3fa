package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/samcharles93/wick/internal/generr"
)

var ErrInvalidRequest = errors.New("invalid_request")

// ErrBusy is returned when no generation slot frees up within the queue
// timeout.
var ErrBusy = errors.New("server busy")

type invalidRequestError struct {
	msg string
}

func (e invalidRequestError) Error() string {
	return e.msg
}

func (e invalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(msg string) error {
	return invalidRequestError{msg: msg}
}

// statusFor maps a generation failure to an HTTP status and error type.
// Order matters: a request-shaped error wins over the kind it wraps.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, generr.ErrInvalidConfig):
		return http.StatusBadRequest, "invalid_request_error"
	case errors.Is(err, generr.ErrEncoding):
		return http.StatusUnprocessableEntity, "encoding_error"
	case errors.Is(err, ErrBusy):
		return http.StatusServiceUnavailable, "server_busy"
	case errors.Is(err, generr.ErrUninitializedModel), errors.Is(err, generr.ErrLoadModel):
		return http.StatusServiceUnavailable, "model_unavailable"
	case errors.Is(err, context.Canceled):
		// nginx convention for a client that went away.
		return 499, "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "server_error"
	}
}
