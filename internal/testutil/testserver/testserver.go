// Package testserver runs the fully wired API on an httptest server backed
// by in-memory SQLite.
package testserver

import (
	"net/http/httptest"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
	"go.uber.org/zap/zaptest"

	"github.com/danielolaru91/AuthSystem/internal/config"
	"github.com/danielolaru91/AuthSystem/internal/server"
	"github.com/danielolaru91/AuthSystem/internal/testutil"
)

// Env is a running test API.
type Env struct {
	URL    string
	DB     *sqlx.DB
	Mailer *testutil.RecordingMailer
	Server *server.Server
}

// Option adjusts the configuration before the server is built.
type Option func(cfg *config.Config)

// Config returns the configuration used by New before options apply.
func Config() *config.Config {
	return &config.Config{
		Env:    "test",
		Server: config.ServerConfig{PublicURL: "http://app.test"},
		Auth:   testutil.AuthConfig(),
	}
}

// New starts the API and shuts it down when the test ends.
func New(t *testing.T, opts ...Option) *Env {
	return NewWithRedis(t, nil, opts...)
}

// NewWithRedis is New with rate limiting and caching backed by rdb.
func NewWithRedis(t *testing.T, rdb *redis.Client, opts ...Option) *Env {
	t.Helper()
	cfg := Config()
	for _, o := range opts {
		o(cfg)
	}
	db := testutil.NewTestDB(t)
	mailer := &testutil.RecordingMailer{}

	srv, err := server.New(cfg, db, rdb, mailer, zaptest.NewLogger(t))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Echo)
	t.Cleanup(ts.Close)
	return &Env{URL: ts.URL, DB: db, Mailer: mailer, Server: srv}
}
