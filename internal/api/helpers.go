package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/gpunexus/gpuf/internal/engine"
)

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, ErrorBody{Message: msg, Type: "invalid_request_error"})
}

func writeNotFound(c *echo.Context, msg string) error {
	return writeError(c, http.StatusNotFound, ErrorBody{Message: msg, Type: "not_found_error"})
}

func writeError(c *echo.Context, status int, body ErrorBody) error {
	return c.JSON(status, map[string]any{"error": body})
}

// writeEngineError reports err with the status matching its kind.
func writeEngineError(c *echo.Context, err error) error {
	if errors.Is(err, ErrInvalidRequest) {
		return writeBadRequest(c, err.Error())
	}
	kind := engine.KindOf(err)
	return writeError(c, httpStatus(kind), engineErrorBody(err))
}

func engineErrorBody(err error) ErrorBody {
	kind := engine.KindOf(err)
	status := engine.StatusOf(err)
	return ErrorBody{
		Message: err.Error(),
		Type:    errorType(kind),
		Code:    engine.StatusName(status),
		Status:  status,
	}
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}
