package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/danielolaru91/AuthSystem/internal/repository"
	"github.com/danielolaru91/AuthSystem/internal/service"
)

// fail writes the common error envelope.
func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"success": false, "message": msg})
}

// serviceError maps service and repository sentinels onto HTTP responses.
// Anything unrecognised is logged and answered with a 500.
func serviceError(c echo.Context, log *zap.Logger, err error) error {
	switch {
	case errors.Is(err, service.ErrMissingFields):
		return fail(c, http.StatusBadRequest, "Email and Password are required")
	case errors.Is(err, service.ErrPasswordRequired):
		return fail(c, http.StatusBadRequest, "New password is required")
	case errors.Is(err, service.ErrPasswordTooLong):
		return fail(c, http.StatusBadRequest, "Password is too long")
	case errors.Is(err, service.ErrInvalidRole):
		return fail(c, http.StatusBadRequest, "Invalid role")
	case errors.Is(err, repository.ErrEmailExists):
		return fail(c, http.StatusConflict, "Email already exists")
	case errors.Is(err, repository.ErrNotFound):
		return fail(c, http.StatusNotFound, "Not found")
	}
	log.Error("request failed",
		zap.String("method", c.Request().Method),
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	return fail(c, http.StatusInternalServerError, "Internal server error")
}

func parseID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// listQuery reads search, sort, order, page and page_size.  Without a
// page_size the whole list is returned.
func listQuery(c echo.Context) repository.ListQuery {
	q := repository.ListQuery{
		Search: strings.TrimSpace(c.QueryParam("search")),
		Sort:   strings.TrimSpace(c.QueryParam("sort")),
		Desc:   strings.EqualFold(c.QueryParam("order"), "desc"),
	}
	ps, _ := strconv.Atoi(c.QueryParam("page_size"))
	if ps <= 0 {
		return q
	}
	if ps > 100 {
		ps = 100
	}
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	if page > math.MaxInt/ps {
		page = math.MaxInt / ps
	}
	q.Limit = ps
	q.Offset = (page - 1) * ps
	return q
}

// bindIDs accepts either a bare JSON array or {"ids": [...]}.
func bindIDs(c echo.Context) ([]uint64, error) {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, err
	}
	body = bytes.TrimSpace(body)
	var ids []uint64
	if len(body) > 0 && body[0] == '[' {
		err = json.Unmarshal(body, &ids)
	} else {
		var wrapped struct {
			IDs []uint64 `json:"ids"`
		}
		err = json.Unmarshal(body, &wrapped)
		ids = wrapped.IDs
	}
	return ids, err
}
