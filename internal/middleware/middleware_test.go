package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/danielolaru91/AuthSystem/internal/config"
	"github.com/danielolaru91/AuthSystem/internal/service"
	"github.com/danielolaru91/AuthSystem/internal/utils"
)

type stubAuth struct {
	id  utils.Identity
	err error
	got string
}

func (s *stubAuth) Authenticate(_ context.Context, raw string) (utils.Identity, error) {
	s.got = raw
	return s.id, s.err
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func whoami(c echo.Context) error {
	id, ok := IdentityFrom(c)
	if !ok {
		return c.String(http.StatusOK, "none")
	}
	return c.String(http.StatusOK, id.Email)
}

func TestSessionAuth(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		cookie     string
		bearer     string
		wantStatus int
		wantBody   string
		wantRaw    string
	}{
		{name: "cookie", cookie: "tok-c", wantStatus: http.StatusOK, wantBody: "a@b.com", wantRaw: "tok-c"},
		{name: "bearer", bearer: "tok-b", wantStatus: http.StatusOK, wantBody: "a@b.com", wantRaw: "tok-b"},
		{name: "cookie wins", cookie: "tok-c", bearer: "tok-b", wantStatus: http.StatusOK, wantRaw: "tok-c"},
		{name: "invalid", err: service.ErrTokenInvalid, wantStatus: http.StatusUnauthorized, wantBody: "SESSION_EXPIRED"},
		{name: "stale", err: service.ErrTokenVersionStale, cookie: "x", wantStatus: http.StatusUnauthorized, wantBody: "SESSION_EXPIRED"},
		{name: "storage failure", err: errors.New("db down"), cookie: "x", wantStatus: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &stubAuth{id: utils.Identity{UserID: 7, Email: "a@b.com", Role: "User"}, err: tt.err}
			e := echo.New()
			e.GET("/me", whoami, SessionAuth(auth, zaptest.NewLogger(t)))

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: AccessCookie, Value: tt.cookie})
			}
			if tt.bearer != "" {
				req.Header.Set(echo.HeaderAuthorization, "Bearer "+tt.bearer)
			}
			rec := serve(e, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
			if tt.wantRaw != "" {
				assert.Equal(t, tt.wantRaw, auth.got)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	for _, tc := range []struct {
		role string
		want int
	}{
		{"SuperAdmin", http.StatusOK},
		{"Admin", http.StatusOK},
		{"User", http.StatusForbidden},
	} {
		auth := &stubAuth{id: utils.Identity{UserID: 1, Role: tc.role}}
		e := echo.New()
		e.GET("/x", whoami, SessionAuth(auth, zaptest.NewLogger(t)), RequireRole("SuperAdmin", "Admin"))

		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.AddCookie(&http.Cookie{Name: AccessCookie, Value: "t"})
		rec := serve(e, req)
		assert.Equal(t, tc.want, rec.Code, tc.role)
		if tc.want == http.StatusForbidden {
			assert.JSONEq(t, `{"success":false,"error":"FORBIDDEN"}`, rec.Body.String())
		}
	}

	// without a session at all
	e := echo.New()
	e.GET("/x", whoami, RequireRole("Admin"))
	assert.Equal(t, http.StatusForbidden, serve(e, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestTokenBucket(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		KeyStrategy:    "ip_route",
	}
	e := echo.New()
	e.POST("/login", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, NewTokenBucket(cfg, rdb, zaptest.NewLogger(t)))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		return serve(e, req)
	}
	assert.Equal(t, http.StatusOK, send().Code)
	rec := send()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = send()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "TOO_MANY_REQUESTS")

	// another client has its own bucket
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	assert.Equal(t, http.StatusOK, serve(e, req).Code)
}

func TestTokenBucket_PassThrough(t *testing.T) {
	mr, rdb := newRedis(t)
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1}
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, NewTokenBucket(cfg, rdb, zaptest.NewLogger(t)))
	e.GET("/nil", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, NewTokenBucket(cfg, nil, zaptest.NewLogger(t)))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(e, httptest.NewRequest(http.MethodGet, "/nil", nil)).Code)
	}

	// redis going away fails open
	mr.Close()
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(e, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
	}
}

func TestRedisCache(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := config.CacheConfig{
		Enabled:     true,
		Methods:     map[string]bool{http.MethodGet: true},
		TTL:         time.Minute,
		KeyStrategy: "route_query",
		Prefix:      "cache",
	}
	calls := 0
	e := echo.New()
	e.GET("/roles", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, []string{"SuperAdmin", "Admin", "User"})
	}, NewRedisCache(cfg, rdb, zaptest.NewLogger(t)))

	first := serve(e, httptest.NewRequest(http.MethodGet, "/roles", nil))
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := serve(e, httptest.NewRequest(http.MethodGet, "/roles", nil))
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, first.Header().Get(echo.HeaderContentType), second.Header().Get(echo.HeaderContentType))
	assert.Equal(t, 1, calls)

	other := serve(e, httptest.NewRequest(http.MethodGet, "/roles?x=1", nil))
	assert.Equal(t, "MISS", other.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)
}

func TestRedisCache_SkipsErrors(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{http.MethodGet: true}}
	calls := 0
	e := echo.New()
	e.GET("/x", func(c echo.Context) error {
		calls++
		return c.NoContent(http.StatusNotFound)
	}, NewRedisCache(cfg, rdb, zaptest.NewLogger(t)))

	serve(e, httptest.NewRequest(http.MethodGet, "/x", nil))
	serve(e, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, 2, calls)
}

func TestRedisCache_SkipsOversizedBodies(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{http.MethodGet: true}, MaxBodyBytes: 8}
	calls := 0
	e := echo.New()
	e.GET("/big", func(c echo.Context) error {
		calls++
		return c.String(http.StatusOK, "0123456789abcdef")
	}, NewRedisCache(cfg, rdb, zaptest.NewLogger(t)))

	first := serve(e, httptest.NewRequest(http.MethodGet, "/big", nil))
	assert.Equal(t, "0123456789abcdef", first.Body.String())
	second := serve(e, httptest.NewRequest(http.MethodGet, "/big", nil))
	assert.Equal(t, "MISS", second.Header().Get("X-Cache"))
	assert.Equal(t, "0123456789abcdef", second.Body.String())
	assert.Equal(t, 2, calls)
}

func TestRedisCache_CorruptEntryIsAMiss(t *testing.T) {
	mr, rdb := newRedis(t)
	cfg := config.CacheConfig{Enabled: true}
	calls := 0
	e := echo.New()
	e.GET("/roles", func(c echo.Context) error {
		calls++
		return c.String(http.StatusOK, "ok")
	}, NewRedisCache(cfg, rdb, zaptest.NewLogger(t)))

	serve(e, httptest.NewRequest(http.MethodGet, "/roles", nil))
	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Contains(t, keys[0], "cache:")
	require.NoError(t, mr.Set(keys[0], "not json"))

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/roles", nil))
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, 2, calls)
}
