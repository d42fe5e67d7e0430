// Package router registers the HTTP routes of the API.  Everything lives
// under /api; the health probes sit at the root.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/vinovest/sqlx"

	"github.com/danielolaru91/AuthSystem/internal/handler"
	"github.com/danielolaru91/AuthSystem/internal/middleware"
	"github.com/danielolaru91/AuthSystem/internal/model"
)

// RegisterRoutes registers the unauthenticated probes.
func RegisterRoutes(e *echo.Echo, db *sqlx.DB) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
}

// RegisterAuth registers /api/auth.  limiter guards every auth route;
// session guards /me only.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, session, limiter echo.MiddlewareFunc) {
	g := e.Group("/api/auth", limiter)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
	g.GET("/confirm-email", a.ConfirmEmail)
	g.POST("/confirm-email", a.ConfirmEmail)
	g.POST("/resend-confirmation", a.ResendConfirmation)
	g.POST("/request-reset", a.RequestReset)
	g.POST("/reset-password", a.ResetPassword)

	g.GET("/me", a.Me, session)
}

var (
	superAdminOnly = middleware.RequireRole(model.RoleNameSuperAdmin)
	adminOrAbove   = middleware.RequireRole(model.RoleNameSuperAdmin, model.RoleNameAdmin)
)

// RegisterUsers registers /api/users.  Reads need a session, writes need
// SuperAdmin.
func RegisterUsers(e *echo.Echo, u *handler.UserHandler, session echo.MiddlewareFunc) {
	g := e.Group("/api/users", session)
	g.GET("", u.List)
	g.GET("/:id", u.Get)

	g.POST("", u.Create, superAdminOnly)
	g.PUT("/:id", u.Update, superAdminOnly)
	g.DELETE("/:id", u.Delete, superAdminOnly)
	g.POST("/bulk-delete", u.BulkDelete, superAdminOnly)
	g.POST("/:id/revoke-sessions", u.RevokeSessions, superAdminOnly)
}

// RegisterCompanies registers /api/companies.  Writes need Admin or
// SuperAdmin.
func RegisterCompanies(e *echo.Echo, co *handler.CompanyHandler, session echo.MiddlewareFunc) {
	g := e.Group("/api/companies", session)
	g.GET("", co.List)
	g.GET("/:id", co.Get)

	g.POST("", co.Create, adminOrAbove)
	g.PUT("/:id", co.Update, adminOrAbove)
	g.DELETE("/:id", co.Delete, adminOrAbove)
	g.POST("/bulk-delete", co.BulkDelete, adminOrAbove)
}

// RegisterRoles registers GET /api/roles behind the response cache.
func RegisterRoles(e *echo.Echo, r *handler.RoleHandler, session, cache echo.MiddlewareFunc) {
	e.GET("/api/roles", r.List, session, cache)
}
