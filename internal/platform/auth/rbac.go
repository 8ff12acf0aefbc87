package auth

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ehr/docportal/internal/platform/apperr"
)

// RequireRole returns middleware that admits only the listed roles. It must
// run after RequireSession.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.String()
	}
	denied := apperr.Forbidden("Required role: %s", strings.Join(names, " or "))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := IdentityFromContext(c.Request().Context())
			if id == nil {
				return ErrUnauthenticated
			}
			for _, r := range roles {
				if id.Role == r {
					return next(c)
				}
			}
			return denied
		}
	}
}
