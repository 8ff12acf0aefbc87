package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// RequireSession resolves the caller for API routes and rejects the request
// with 401 before any handler runs when there is no live session.
func RequireSession(resolver Resolver, now func() time.Time, logger zerolog.Logger) echo.MiddlewareFunc {
	if now == nil {
		now = time.Now
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id, err := resolver.Resolve(req.Context(), req)
			if err != nil || id == nil {
				logger.Debug().Err(err).Str("path", req.URL.Path).Msg("session rejected")
				return ErrUnauthenticated
			}
			if id.Expired(now()) {
				return ErrUnauthenticated
			}

			c.SetRequest(req.WithContext(WithIdentity(req.Context(), id)))
			c.Set("user_id", id.UserID)
			return next(c)
		}
	}
}

// SignOutHandler revokes the caller's session token until it would have
// expired and clears the session cookie.
func SignOutHandler(store RevocationStore, cookieName string, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := IdentityFromContext(c.Request().Context())
		if id == nil {
			return ErrUnauthenticated
		}

		if id.TokenID != "" {
			until := id.ExpiresAt
			if id.RefreshExpiresAt.After(until) {
				until = id.RefreshExpiresAt
			}
			if err := store.Revoke(c.Request().Context(), id.TokenID, until); err != nil {
				return err
			}
		}

		if cookieName != "" {
			c.SetCookie(&http.Cookie{
				Name:     cookieName,
				Value:    "",
				Path:     "/",
				MaxAge:   -1,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		logger.Info().Str("user_id", id.UserID).Msg("session signed out")
		return c.JSON(http.StatusOK, map[string]bool{"success": true})
	}
}
