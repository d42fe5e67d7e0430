package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/danielolaru91/AuthSystem/internal/middleware"
	"github.com/danielolaru91/AuthSystem/internal/service"
)

// Cookies writes the session cookies.  Both are HttpOnly and SameSite=Lax.
type Cookies struct {
	Secure bool
}

func (k Cookies) cookie(name, value string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   k.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (k Cookies) setSession(c echo.Context, s *service.Session) {
	c.SetCookie(k.cookie(middleware.AccessCookie, s.Access.Token, s.Access.Exp))
	c.SetCookie(k.cookie(middleware.RefreshCookie, s.Refresh.Raw, s.Refresh.Exp))
}

// clear expires both cookies on the client.
func (k Cookies) clear(c echo.Context) {
	for _, name := range []string{middleware.AccessCookie, middleware.RefreshCookie} {
		ck := k.cookie(name, "", time.Unix(0, 0))
		ck.MaxAge = -1
		c.SetCookie(ck)
	}
}
