package app

import (
	"errors"
	"net/http"
)

// Error taxonomy. Everything the engine returns wraps one of these so the
// HTTP layer can map to a status code without string matching.
var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("invalid state transition")
	ErrConflict        = errors.New("conflict")
	ErrAuth            = errors.New("not authorized")
	ErrExternalService = errors.New("external service failure")
)

// StatusFromError maps an engine error to an HTTP status code.
func StatusFromError(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, ErrExternalService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
