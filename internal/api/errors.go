package api

import (
	"errors"
	"net/http"

	"github.com/gpunexus/gpuf/internal/engine"
)

var ErrInvalidRequest = errors.New("invalid_request")

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

// httpStatus maps an engine failure to the response status.
func httpStatus(kind engine.Kind) int {
	switch kind {
	case engine.InvalidInput:
		return http.StatusBadRequest
	case engine.FileNotFound:
		return http.StatusNotFound
	case engine.InvalidFormat:
		return http.StatusUnprocessableEntity
	case engine.NotInitialized:
		return http.StatusConflict
	case engine.ResourceExhaustion:
		return http.StatusInsufficientStorage
	case engine.Aborted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorType is the "type" field of error bodies.
func errorType(kind engine.Kind) string {
	switch kind {
	case engine.InvalidInput:
		return "invalid_request_error"
	case engine.FileNotFound:
		return "not_found_error"
	case engine.NotInitialized:
		return "conflict_error"
	default:
		return "server_error"
	}
}
