package middleware

// identity.go stores and reads the authenticated caller on the Echo context.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/danielolaru91/AuthSystem/internal/utils"
)

const identityKey = "identity"

// SetIdentity records the authenticated caller for downstream handlers.
func SetIdentity(c echo.Context, id utils.Identity) { c.Set(identityKey, id) }

// IdentityFrom returns the caller established by SessionAuth.
func IdentityFrom(c echo.Context) (utils.Identity, bool) {
	id, ok := c.Get(identityKey).(utils.Identity)
	return id, ok
}

// userID identifies the caller in rate limit keys; "anon" when no session
// has been established.
func userID(c echo.Context) string {
	if id, ok := IdentityFrom(c); ok {
		return strconv.FormatUint(id.UserID, 10)
	}
	return "anon"
}
