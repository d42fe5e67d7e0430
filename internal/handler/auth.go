package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/danielolaru91/AuthSystem/internal/middleware"
	"github.com/danielolaru91/AuthSystem/internal/service"
)

// AuthHandler serves the /api/auth endpoints.
type AuthHandler struct {
	Sessions *service.SessionService
	Accounts *service.AccountService
	Cookies  Cookies
	Log      *zap.Logger
}

func NewAuthHandler(s *service.SessionService, a *service.AccountService, cookies Cookies, log *zap.Logger) *AuthHandler {
	return &AuthHandler{Sessions: s, Accounts: a, Cookies: cookies, Log: log}
}

// ----- DTOs -----

type credentialsReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type emailReq struct {
	Email string `json:"email"`
}
type tokenReq struct {
	Token string `json:"token"`
}
type resetReq struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type sessionResp struct {
	Success bool   `json:"success"`
	Role    string `json:"role"`
	UserID  uint64 `json:"userId"`
}

func timeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

// Register: create an unconfirmed account and mail a confirmation link.
func (h *AuthHandler) Register(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	ctx, cancel := timeout(c)
	defer cancel()

	if _, err := h.Accounts.Register(ctx, req.Email, req.Password); err != nil {
		if errors.Is(err, service.ErrEmailExists) {
			return fail(c, http.StatusConflict, "Email already registered")
		}
		return serviceError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Registration successful. Please check your email to confirm your account.",
	})
}

// Login: verify credentials and set both session cookies.
func (h *AuthHandler) Login(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	ctx, cancel := timeout(c)
	defer cancel()

	sess, err := h.Sessions.Login(ctx, req.Email, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrInvalidCredentials):
		return fail(c, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, service.ErrUnconfirmedAccount):
		return fail(c, http.StatusUnauthorized, "Please confirm your email before logging in.")
	default:
		return serviceError(c, h.Log, err)
	}

	h.Cookies.setSession(c, sess)
	return c.JSON(http.StatusOK, sessionResp{Success: true, Role: sess.Identity.Role, UserID: sess.Identity.UserID})
}

// Me: identity of the current session.  Runs behind SessionAuth.
func (h *AuthHandler) Me(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"authenticated": true,
		"email":         id.Email,
		"role":          id.Role,
		"userId":        id.UserID,
	})
}

// Refresh: rotate the refresh token and issue a new access token.  The
// token comes from the cookie or, failing that, the JSON body.
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw := refreshTokenFrom(c)
	ctx, cancel := timeout(c)
	defer cancel()

	sess, err := h.Sessions.Refresh(ctx, raw)
	if errors.Is(err, service.ErrRefreshTokenInvalid) {
		h.Cookies.clear(c)
		return c.JSON(http.StatusUnauthorized, echo.Map{
			"success": false,
			"error":   "REFRESH_INVALID",
			"message": "Refresh token is invalid or expired. Please log in again.",
		})
	}
	if err != nil {
		return serviceError(c, h.Log, err)
	}

	h.Cookies.setSession(c, sess)
	return c.JSON(http.StatusOK, sessionResp{Success: true, Role: sess.Identity.Role, UserID: sess.Identity.UserID})
}

func refreshTokenFrom(c echo.Context) string {
	if ck, err := c.Cookie(middleware.RefreshCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return ""
	}
	return strings.TrimSpace(req.RefreshToken)
}

// Logout always succeeds and clears both cookies.  Storage failures are
// logged only.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := timeout(c)
	defer cancel()

	if err := h.Sessions.Logout(ctx, middleware.AccessToken(c), refreshTokenFrom(c)); err != nil {
		h.Log.Error("logout: revoke failed", zap.Error(err))
	}
	h.Cookies.clear(c)
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// ConfirmEmail accepts the token as ?token= or in a JSON body.
func (h *AuthHandler) ConfirmEmail(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		var req tokenReq
		_ = c.Bind(&req)
		token = req.Token
	}
	ctx, cancel := timeout(c)
	defer cancel()

	if err := h.Accounts.ConfirmEmail(ctx, token); err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			return fail(c, http.StatusBadRequest, "Invalid or expired confirmation token")
		}
		return serviceError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Email confirmed successfully"})
}

// ResendConfirmation never discloses whether the email exists.
func (h *AuthHandler) ResendConfirmation(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	ctx, cancel := timeout(c)
	defer cancel()

	if err := h.Accounts.ResendConfirmation(ctx, req.Email); err != nil {
		h.Log.Error("resend confirmation failed", zap.Error(err))
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// RequestReset never discloses whether the email exists.
func (h *AuthHandler) RequestReset(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	ctx, cancel := timeout(c)
	defer cancel()

	if err := h.Accounts.RequestPasswordReset(ctx, req.Email); err != nil {
		h.Log.Error("request reset failed", zap.Error(err))
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	ctx, cancel := timeout(c)
	defer cancel()

	if err := h.Accounts.ResetPassword(ctx, req.Token, req.NewPassword); err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			return fail(c, http.StatusBadRequest, "Invalid or expired token")
		}
		return serviceError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Password reset successfully"})
}
