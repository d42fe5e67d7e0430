package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/danielolaru91/AuthSystem/internal/middleware"
	"github.com/danielolaru91/AuthSystem/internal/model"
	"github.com/danielolaru91/AuthSystem/internal/service"
)

// UserHandler serves /api/users.
type UserHandler struct {
	Users   *service.UserService
	Cookies Cookies
	Log     *zap.Logger
}

func NewUserHandler(users *service.UserService, cookies Cookies, log *zap.Logger) *UserHandler {
	return &UserHandler{Users: users, Cookies: cookies, Log: log}
}

type userDTO struct {
	ID             uint64 `json:"id"`
	Email          string `json:"email"`
	EmailConfirmed bool   `json:"emailConfirmed"`
	RoleID         uint8  `json:"roleId"`
	Role           string `json:"role"`
}

func toUserDTO(u *model.User) userDTO {
	return userDTO{ID: u.ID, Email: u.Email, EmailConfirmed: u.EmailConfirmed, RoleID: u.RoleID, Role: u.RoleName}
}

type createUserReq struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	EmailConfirmed bool   `json:"emailConfirmed"`
	RoleID         uint8  `json:"roleId"`
}

type updateUserReq struct {
	Email          string `json:"email"`
	EmailConfirmed bool   `json:"emailConfirmed"`
	RoleID         uint8  `json:"roleId"`
}

// List handles GET /api/users?search=&sort=&order=&page=&page_size=.
func (h *UserHandler) List(c echo.Context) error {
	users, total, err := h.Users.List(c.Request().Context(), listQuery(c))
	if err != nil {
		return serviceError(c, h.Log, err)
	}
	out := make([]userDTO, 0, len(users))
	for i := range users {
		out = append(out, toUserDTO(&users[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"data": out, "total": total})
}

func (h *UserHandler) Get(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return fail(c, http.StatusBadRequest, "invalid id")
	}
	u, err := h.Users.Get(c.Request().Context(), id)
	if err != nil {
		return serviceError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toUserDTO(u))
}

func (h *UserHandler) Create(c echo.Context) error {
	var req createUserReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	u, err := h.Users.Create(c.Request().Context(), service.CreateUserInput{
		Email:          req.Email,
		Password:       req.Password,
		EmailConfirmed: req.EmailConfirmed,
		RoleID:         req.RoleID,
	})
	if err != nil {
		return serviceError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, toUserDTO(u))
}

// Update handles PUT /api/users/:id.  Editing one's own account ends the
// caller's session: both cookies are deleted and the client must log in.
func (h *UserHandler) Update(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return fail(c, http.StatusBadRequest, "invalid id")
	}
	var req updateUserReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	actor, _ := middleware.IdentityFrom(c)

	own, err := h.Users.Update(c.Request().Context(), actor.UserID, id, service.UpdateUserInput{
		Email:          req.Email,
		EmailConfirmed: req.EmailConfirmed,
		RoleID:         req.RoleID,
	})
	if err != nil {
		return serviceError(c, h.Log, err)
	}
	if own {
		h.Cookies.clear(c)
		return c.JSON(http.StatusOK, echo.Map{
			"updatedOwnAccount": true,
			"message":           "Your account was updated. Please re-authenticate.",
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"updatedOwnAccount": false})
}

func (h *UserHandler) Delete(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return fail(c, http.StatusBadRequest, "invalid id")
	}
	if err := h.Users.Delete(c.Request().Context(), id); err != nil {
		return serviceError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// BulkDelete handles POST /api/users/bulk-delete with [ids] or {"ids":[...]}.
func (h *UserHandler) BulkDelete(c echo.Context) error {
	ids, err := bindIDs(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	if len(ids) == 0 {
		return fail(c, http.StatusBadRequest, "No IDs provided.")
	}
	n, err := h.Users.BulkDelete(c.Request().Context(), ids)
	if err != nil {
		return serviceError(c, h.Log, err)
	}
	if n == 0 {
		return fail(c, http.StatusNotFound, "No matching users found.")
	}
	return c.NoContent(http.StatusNoContent)
}

// RevokeSessions handles POST /api/users/:id/revoke-sessions.
func (h *UserHandler) RevokeSessions(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return fail(c, http.StatusBadRequest, "invalid id")
	}
	if err := h.Users.RevokeSessions(c.Request().Context(), id); err != nil {
		return serviceError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
