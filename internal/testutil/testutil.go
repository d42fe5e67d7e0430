// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"database/sql"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/danielolaru91/AuthSystem/internal/config"
	"github.com/danielolaru91/AuthSystem/internal/database"
	"github.com/danielolaru91/AuthSystem/internal/model"
	"github.com/danielolaru91/AuthSystem/internal/repository"
	"github.com/danielolaru91/AuthSystem/internal/utils"
)

// Secret signs every token minted in tests.
const Secret = "test-signing-secret"

// NewTestDB creates an in-memory SQLite database with migrations applied.
func NewTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// AuthConfig returns the auth settings used across tests.
func AuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:  Secret,
		Issuer:     "backend",
		Audience:   "frontend",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		ConfirmTTL: 24 * time.Hour,
		ResetTTL:   time.Hour,
		BcryptCost: bcrypt.MinCost,
	}
}

// NewCodec returns a token codec built from AuthConfig.
func NewCodec(t *testing.T) *utils.TokenCodec {
	t.Helper()
	tc, err := utils.NewTokenCodec(AuthConfig())
	require.NoError(t, err)
	return tc
}

// UserOption tweaks a fixture user before insertion.
type UserOption func(u *model.User)

// Unconfirmed leaves the email unconfirmed.
func Unconfirmed() UserOption { return func(u *model.User) { u.EmailConfirmed = false } }

// WithRole sets the role id.
func WithRole(id uint8) UserOption { return func(u *model.User) { u.RoleID = id } }

// NewTestUser creates a confirmed user with the User role and the given password.
func NewTestUser(t *testing.T, db *sqlx.DB, email, password string, opts ...UserOption) *model.User {
	t.Helper()
	hash, err := utils.HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)

	u := &model.User{
		Email:          email,
		PasswordHash:   hash,
		EmailConfirmed: true,
		RoleID:         model.RoleUser,
	}
	for _, o := range opts {
		o(u)
	}
	require.NoError(t, repository.NewUserRepo(db).Create(context.Background(), u))

	fresh, err := repository.NewUserRepo(db).GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	return fresh
}

// Reload reads the user back from the database.
func Reload(t *testing.T, db *sqlx.DB, id uint64) *model.User {
	t.Helper()
	u, err := repository.NewUserRepo(db).GetByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

// NullTime wraps t as a valid sql.NullTime.
func NullTime(t time.Time) sql.NullTime { return sql.NullTime{Time: t.UTC(), Valid: true} }

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}
