// Package apperror defines the error kinds shared by services, repositories and handlers.
// Concrete errors wrap one of the kinds with samber/oops so errors.Is keeps working
// while logs get a code and structured context.
package apperror

import (
	"errors"
	"net/http"

	"github.com/samber/oops"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConfiguration   = errors.New("configuration error")
	ErrDeliveryFailure = errors.New("delivery failure")
	ErrUnauthorized    = errors.New("unauthorized")
)

// NotFound wraps ErrNotFound under the given code.
func NotFound(code string, kv ...any) error {
	return oops.Code(code).With(kv...).Wrap(ErrNotFound)
}

// InvalidArgument wraps ErrInvalidArgument with a human readable reason.
func InvalidArgument(code, reason string, kv ...any) error {
	return oops.Code(code).With(kv...).Wrapf(ErrInvalidArgument, "%s", reason)
}

// Configuration wraps ErrConfiguration with a reason.
func Configuration(code, reason string) error {
	return oops.Code(code).Wrapf(ErrConfiguration, "%s", reason)
}

// Unauthorized wraps ErrUnauthorized with a reason.
func Unauthorized(code, reason string) error {
	return oops.Code(code).Wrapf(ErrUnauthorized, "%s", reason)
}

// DeliveryFailure wraps a transport error so callers can match ErrDeliveryFailure
// and still unwrap the underlying cause.
func DeliveryFailure(code string, cause error, kv ...any) error {
	return oops.Code(code).With(kv...).Wrap(errors.Join(ErrDeliveryFailure, cause))
}

// HTTPStatus maps an error kind onto a response status.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrConfiguration):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrDeliveryFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Code returns the oops code attached to err, or "" when there is none.
func Code(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if c, ok := oopsErr.Code().(string); ok {
			return c
		}
	}
	return ""
}
