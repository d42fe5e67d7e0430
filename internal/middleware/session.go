package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/danielolaru91/AuthSystem/internal/service"
	"github.com/danielolaru91/AuthSystem/internal/utils"
)

// Cookie names shared with the auth handlers.
const (
	AccessCookie  = "auth_token"
	RefreshCookie = "refresh_token"
)

// Authenticator validates an access token against current account state.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (utils.Identity, error)
}

// AccessToken returns the access token presented with the request: the
// auth cookie first, then an Authorization Bearer header.
func AccessToken(c echo.Context) string {
	if ck, err := c.Cookie(AccessCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// SessionAuth rejects requests whose access token is missing, fails
// verification, or carries a stale token version.  All three answer 401
// SESSION_EXPIRED so the client knows to try a refresh.
func SessionAuth(auth Authenticator, log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, err := auth.Authenticate(c.Request().Context(), AccessToken(c))
			switch {
			case err == nil:
			case errors.Is(err, service.ErrTokenInvalid), errors.Is(err, service.ErrTokenVersionStale):
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"success": false,
					"error":   "SESSION_EXPIRED",
					"message": "Session expired. Please refresh your token.",
				})
			default:
				log.Error("session validation failed", zap.Error(err))
				return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "INTERNAL_ERROR"})
			}

			SetIdentity(c, id)
			return next(c)
		}
	}
}
