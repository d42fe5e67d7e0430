package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/danielolaru91/AuthSystem/internal/model"
	"github.com/danielolaru91/AuthSystem/internal/repository"
)

// CompanyHandler serves /api/companies straight from the repository.
type CompanyHandler struct {
	Companies *repository.CompanyRepo
	Log       *zap.Logger
}

func NewCompanyHandler(repo *repository.CompanyRepo, log *zap.Logger) *CompanyHandler {
	if repo == nil {
		panic("nil repository passed to NewCompanyHandler")
	}
	return &CompanyHandler{Companies: repo, Log: log}
}

type companyReq struct {
	Name string `json:"name"`
}

func (h *CompanyHandler) List(c echo.Context) error {
	items, total, err := h.Companies.List(c.Request().Context(), listQuery(c))
	if err != nil {
		return serviceError(c, h.Log, err)
	}
	if items == nil {
		items = []model.Company{}
	}
	return c.JSON(http.StatusOK, echo.Map{"data": items, "total": total})
}

func (h *CompanyHandler) Get(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return fail(c, http.StatusBadRequest, "invalid id")
	}
	co, err := h.Companies.GetByID(c.Request().Context(), id)
	if err != nil {
		return serviceError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, co)
}

func (h *CompanyHandler) Create(c echo.Context) error {
	var req companyReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return fail(c, http.StatusBadRequest, "Name is required")
	}
	co := &model.Company{Name: name}
	if err := h.Companies.Create(c.Request().Context(), co); err != nil {
		return serviceError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, co)
}

func (h *CompanyHandler) Update(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return fail(c, http.StatusBadRequest, "invalid id")
	}
	var req companyReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return fail(c, http.StatusBadRequest, "Name is required")
	}
	if err := h.Companies.Update(c.Request().Context(), id, name); err != nil {
		return serviceError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CompanyHandler) Delete(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return fail(c, http.StatusBadRequest, "invalid id")
	}
	if err := h.Companies.Delete(c.Request().Context(), id); err != nil {
		return serviceError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CompanyHandler) BulkDelete(c echo.Context) error {
	ids, err := bindIDs(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	if len(ids) == 0 {
		return fail(c, http.StatusBadRequest, "No IDs provided.")
	}
	n, err := h.Companies.DeleteMany(c.Request().Context(), ids)
	if err != nil {
		return serviceError(c, h.Log, err)
	}
	if n == 0 {
		return fail(c, http.StatusNotFound, "No matching companies found.")
	}
	return c.NoContent(http.StatusNoContent)
}
