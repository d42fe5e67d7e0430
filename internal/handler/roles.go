package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/danielolaru91/AuthSystem/internal/repository"
)

type RoleHandler struct {
	Roles *repository.RoleRepo
	Log   *zap.Logger
}

func NewRoleHandler(repo *repository.RoleRepo, log *zap.Logger) *RoleHandler {
	return &RoleHandler{Roles: repo, Log: log}
}

type roleDTO struct {
	ID   uint8  `json:"id"`
	Name string `json:"name"`
}

// List handles GET /api/roles.
func (h *RoleHandler) List(c echo.Context) error {
	roles, err := h.Roles.List(c.Request().Context())
	if err != nil {
		return serviceError(c, h.Log, err)
	}
	out := make([]roleDTO, 0, len(roles))
	for _, r := range roles {
		out = append(out, roleDTO{ID: r.ID, Name: r.Name})
	}
	return c.JSON(http.StatusOK, out)
}
