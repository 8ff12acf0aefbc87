package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Recovery turns a handler panic into an ordinary error so the error handler
// answers 500 with the generic message. http.ErrAbortHandler is re-raised.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if e, ok := r.(error); ok && errors.Is(e, http.ErrAbortHandler) {
					panic(r)
				}

				req := c.Request()
				rid, _ := c.Get("request_id").(string)
				uid, _ := c.Get("user_id").(string)
				logger.Error().
					Str("request_id", rid).
					Str("user_id", uid).
					Str("method", req.Method).
					Str("path", req.URL.Path).
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				err = fmt.Errorf("panic in %s %s: %v", req.Method, req.URL.Path, r)
			}()
			return next(c)
		}
	}
}
