// Package apperr holds the request error taxonomy shared by every handler
// and the echo error handler that turns it into JSON responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("unavailable")
)

// Error carries a client-facing message alongside one of the sentinel kinds.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func Validation(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...any) error {
	return &Error{Kind: ErrForbidden, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) error {
	return &Error{Kind: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

func Unavailable(format string, args ...any) error {
	return &Error{Kind: ErrUnavailable, Message: fmt.Sprintf(format, args...)}
}

// Status maps an error onto its HTTP status and client message. Unknown
// errors are store failures and never expose their cause.
func Status(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, ok := he.Message.(string)
		if !ok {
			msg = http.StatusText(he.Code)
		}
		return he.Code, msg
	}

	msg := ""
	var ae *Error
	if errors.As(err, &ae) {
		msg = ae.Message
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, orDefault(msg, "Unauthorized")
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, orDefault(msg, "Invalid request")
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, orDefault(msg, "Not found")
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, orDefault(msg, "Forbidden")
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, orDefault(msg, "Conflict")
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable, orDefault(msg, "Service unavailable")
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func orDefault(msg, def string) string {
	if msg == "" {
		return def
	}
	return msg
}

// Bind decodes the request body into v. Oversized bodies keep their 413;
// any other decode failure is a validation error.
func Bind(c echo.Context, v any) error {
	err := c.Bind(v)
	if err == nil {
		return nil
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		if he, ok := e.(*echo.HTTPError); ok && he.Code == http.StatusRequestEntityTooLarge {
			return he
		}
	}
	return Validation("Invalid request body")
}

// HTTPErrorHandler renders every handler error as {"error": "..."} and logs
// the underlying cause of 5xx responses.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := Status(err)
		if code >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, map[string]string{"error": msg})
		}
		if err != nil {
			logger.Error().Err(err).Msg("write error response")
		}
	}
}
