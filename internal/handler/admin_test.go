package handler_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaru91/AuthSystem/internal/config"
	"github.com/danielolaru91/AuthSystem/internal/model"
	"github.com/danielolaru91/AuthSystem/internal/testutil"
	"github.com/danielolaru91/AuthSystem/internal/testutil/testserver"
)

func TestUsers_CRUD(t *testing.T) {
	env := testserver.New(t)
	admin, _ := seed(t, env, "root@b.com", model.RoleSuperAdmin)

	r := admin.do(http.MethodPost, "/api/users", map[string]any{"email": "new@b.com", "password": "pw", "roleId": model.RoleUser})
	require.Equal(t, http.StatusCreated, r.Status, string(r.Body))
	created := r.JSON(t)
	assert.Equal(t, "new@b.com", created["email"])
	assert.Equal(t, false, created["emailConfirmed"])
	assert.Contains(t, env.Mailer.Last(t).HTML, "confirm-email?token=")
	id := uint64(created["id"].(float64))

	assert.Equal(t, http.StatusConflict, admin.do(http.MethodPost, "/api/users", map[string]any{"email": "new@b.com", "password": "pw", "roleId": 3}).Status)
	bad := admin.do(http.MethodPost, "/api/users", map[string]any{"email": "x@b.com", "password": "pw", "roleId": 42})
	assert.Equal(t, http.StatusBadRequest, bad.Status)
	assert.Equal(t, "Invalid role", bad.JSON(t)["message"])

	got := admin.do(http.MethodGet, fmt.Sprintf("/api/users/%d", id), nil)
	require.Equal(t, http.StatusOK, got.Status)
	assert.Equal(t, "User", got.JSON(t)["role"])

	list := admin.do(http.MethodGet, "/api/users?sort=email&order=desc&page=1&page_size=1", nil)
	require.Equal(t, http.StatusOK, list.Status)
	var page struct {
		Data []struct {
			Email string `json:"email"`
		} `json:"data"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(list.Body, &page))
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "root@b.com", page.Data[0].Email)

	assert.Equal(t, http.StatusNoContent, admin.do(http.MethodDelete, fmt.Sprintf("/api/users/%d", id), nil).Status)
	assert.Equal(t, http.StatusNotFound, admin.do(http.MethodDelete, fmt.Sprintf("/api/users/%d", id), nil).Status)
	assert.Equal(t, http.StatusBadRequest, admin.do(http.MethodGet, "/api/users/abc", nil).Status)

	long := admin.do(http.MethodPost, "/api/users", map[string]any{"email": "long@b.com", "password": strings.Repeat("x", 73), "roleId": model.RoleUser})
	assert.Equal(t, http.StatusBadRequest, long.Status)
	assert.Equal(t, "Password is too long", long.JSON(t)["message"])
}

func TestUsers_HugePageIsEmpty(t *testing.T) {
	env := testserver.New(t)
	admin, _ := seed(t, env, "root@b.com", model.RoleSuperAdmin)

	r := admin.do(http.MethodGet, "/api/users?page_size=10&page=9223372036854775807", nil)
	require.Equal(t, http.StatusOK, r.Status, string(r.Body))
	var page struct {
		Data  []json.RawMessage `json:"data"`
		Total int               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(r.Body, &page))
	assert.Empty(t, page.Data)
	assert.Equal(t, 1, page.Total)
}

func TestUsers_WritesNeedSuperAdmin(t *testing.T) {
	env := testserver.New(t)
	admin, _ := seed(t, env, "admin@b.com", model.RoleAdmin)

	assert.Equal(t, http.StatusOK, admin.do(http.MethodGet, "/api/users", nil).Status)
	r := admin.do(http.MethodPost, "/api/users", map[string]any{"email": "x@b.com", "password": "pw", "roleId": 3})
	assert.Equal(t, http.StatusForbidden, r.Status)
	assert.Equal(t, "FORBIDDEN", r.JSON(t)["error"])
}

func TestUsers_UpdateOwnAccount(t *testing.T) {
	env := testserver.New(t)
	admin, me := seed(t, env, "root@b.com", model.RoleSuperAdmin)

	r := admin.do(http.MethodPut, fmt.Sprintf("/api/users/%d", me.ID), map[string]any{
		"email": "root@b.com", "emailConfirmed": true, "roleId": model.RoleSuperAdmin,
	})
	require.Equal(t, http.StatusOK, r.Status, string(r.Body))
	assert.Equal(t, map[string]any{
		"updatedOwnAccount": true,
		"message":           "Your account was updated. Please re-authenticate.",
	}, r.JSON(t))

	assert.Equal(t, http.StatusUnauthorized, admin.do(http.MethodGet, "/api/auth/me", nil).Status)
	assert.Equal(t, http.StatusUnauthorized, admin.do(http.MethodPost, "/api/auth/refresh", nil).Status)
	admin.login("root@b.com", "pw")
}

func TestUsers_BulkDeleteAndRevoke(t *testing.T) {
	env := testserver.New(t)
	admin, _ := seed(t, env, "root@b.com", model.RoleSuperAdmin)
	victim, v := seed(t, env, "v@b.com", model.RoleUser)
	a := testutil.NewTestUser(t, env.DB, "a@b.com", "pw")
	b := testutil.NewTestUser(t, env.DB, "b@b.com", "pw")

	r := admin.do(http.MethodPost, fmt.Sprintf("/api/users/%d/revoke-sessions", v.ID), nil)
	require.Equal(t, http.StatusNoContent, r.Status)
	assert.Equal(t, http.StatusUnauthorized, victim.do(http.MethodGet, "/api/auth/me", nil).Status)
	assert.Equal(t, http.StatusUnauthorized, victim.do(http.MethodPost, "/api/auth/refresh", nil).Status)

	assert.Equal(t, http.StatusBadRequest, admin.do(http.MethodPost, "/api/users/bulk-delete", []uint64{}).Status)
	assert.Equal(t, http.StatusNoContent, admin.do(http.MethodPost, "/api/users/bulk-delete", []uint64{a.ID}).Status)
	assert.Equal(t, http.StatusNoContent, admin.do(http.MethodPost, "/api/users/bulk-delete", map[string]any{"ids": []uint64{b.ID}}).Status)
	assert.Equal(t, http.StatusNotFound, admin.do(http.MethodPost, "/api/users/bulk-delete", []uint64{a.ID, b.ID}).Status)
}

func TestCompanies(t *testing.T) {
	env := testserver.New(t)
	admin, _ := seed(t, env, "admin@b.com", model.RoleAdmin)
	user, _ := seed(t, env, "u@b.com", model.RoleUser)

	r := admin.do(http.MethodPost, "/api/companies", map[string]string{"name": "Acme"})
	require.Equal(t, http.StatusCreated, r.Status, string(r.Body))
	id := uint64(r.JSON(t)["id"].(float64))
	require.Equal(t, http.StatusCreated, admin.do(http.MethodPost, "/api/companies", map[string]string{"name": "Beta"}).Status)
	assert.Equal(t, http.StatusBadRequest, admin.do(http.MethodPost, "/api/companies", map[string]string{"name": " "}).Status)

	assert.Equal(t, http.StatusNoContent, admin.do(http.MethodPut, fmt.Sprintf("/api/companies/%d", id), map[string]string{"name": "Acme Corp"}).Status)
	assert.Equal(t, http.StatusNotFound, admin.do(http.MethodPut, "/api/companies/999", map[string]string{"name": "x"}).Status)

	got := user.do(http.MethodGet, fmt.Sprintf("/api/companies/%d", id), nil)
	require.Equal(t, http.StatusOK, got.Status)
	assert.Equal(t, "Acme Corp", got.JSON(t)["name"])

	list := user.do(http.MethodGet, "/api/companies?search=beta", nil)
	require.Equal(t, http.StatusOK, list.Status)
	assert.Equal(t, float64(1), list.JSON(t)["total"])

	assert.Equal(t, http.StatusForbidden, user.do(http.MethodDelete, fmt.Sprintf("/api/companies/%d", id), nil).Status)
	assert.Equal(t, http.StatusNoContent, admin.do(http.MethodDelete, fmt.Sprintf("/api/companies/%d", id), nil).Status)
	assert.Equal(t, http.StatusNotFound, admin.do(http.MethodGet, fmt.Sprintf("/api/companies/%d", id), nil).Status)
	assert.Equal(t, http.StatusNotFound, admin.do(http.MethodPost, "/api/companies/bulk-delete", map[string]any{"ids": []uint64{id}}).Status)
}

func TestRoles_Cached(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	env := testserver.NewWithRedis(t, rdb, func(cfg *config.Config) {
		cfg.Cache = config.CacheConfig{Enabled: true, Methods: map[string]bool{http.MethodGet: true}, Prefix: "cache"}
	})
	user, _ := seed(t, env, "u@b.com", model.RoleUser)

	first := user.do(http.MethodGet, "/api/roles", nil)
	require.Equal(t, http.StatusOK, first.Status)
	assert.JSONEq(t, `[{"id":1,"name":"SuperAdmin"},{"id":2,"name":"Admin"},{"id":3,"name":"User"}]`, string(first.Body))
	assert.Equal(t, "MISS", first.Resp.Header.Get("X-Cache"))

	second := user.do(http.MethodGet, "/api/roles", nil)
	assert.Equal(t, "HIT", second.Resp.Header.Get("X-Cache"))
	assert.JSONEq(t, string(first.Body), string(second.Body))

	// the cache sits behind the session check
	assert.Equal(t, http.StatusUnauthorized, newBrowser(t, env).do(http.MethodGet, "/api/roles", nil).Status)
}

func TestAuthRateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	env := testserver.NewWithRedis(t, rdb, func(cfg *config.Config) {
		cfg.RateLimit = config.RateLimitConfig{Enabled: true, Capacity: 2, RefillInterval: time.Hour, KeyStrategy: "ip_route"}
	})
	b := newBrowser(t, env)
	body := map[string]string{"email": "x@b.com", "password": "pw"}

	assert.Equal(t, http.StatusUnauthorized, b.do(http.MethodPost, "/api/auth/login", body).Status)
	assert.Equal(t, http.StatusUnauthorized, b.do(http.MethodPost, "/api/auth/login", body).Status)
	r := b.do(http.MethodPost, "/api/auth/login", body)
	assert.Equal(t, http.StatusTooManyRequests, r.Status)
	assert.NotEmpty(t, r.Resp.Header.Get("Retry-After"))
}

func TestHealth(t *testing.T) {
	env := testserver.New(t)
	b := newBrowser(t, env)
	assert.Equal(t, http.StatusOK, b.do(http.MethodGet, "/healthz", nil).Status)
	assert.Equal(t, http.StatusOK, b.do(http.MethodGet, "/readyz", nil).Status)
}
