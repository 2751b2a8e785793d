package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/signalsfoundry/libya-atlas/internal/logging"
	"github.com/signalsfoundry/libya-atlas/internal/view/state"
	"github.com/signalsfoundry/libya-atlas/kb"
)

// ErrBadRequest marks request bodies that fail binding or validation.
var ErrBadRequest = errors.New("bad request")

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// StatusCode maps store, view and request errors onto HTTP status codes.
func StatusCode(err error) int {
	var he *echo.HTTPError
	var ve validator.ValidationErrors
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &he):
		return he.Code
	case errors.Is(err, state.ErrSessionNotFound),
		errors.Is(err, kb.ErrMunicipalityNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, state.ErrInvalidEvent),
		errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, state.ErrSessionClosed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := StatusCode(err)
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}

	if code >= http.StatusInternalServerError {
		ctx := c.Request().Context()
		logging.FromContext(ctx, s.log).Error(ctx, "request failed",
			logging.String("route", c.Path()),
			logging.Err(err),
		)
	}
	_ = c.JSON(code, ErrorResponse{Message: msg, Code: code})
}
