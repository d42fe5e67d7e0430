package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaru91/AuthSystem/internal/config"
	"github.com/danielolaru91/AuthSystem/internal/database"
)

func TestOpen_SQLiteMemoryAppliesMigrations(t *testing.T) {
	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var names []string
	require.NoError(t, db.Select(&names, "SELECT name FROM roles ORDER BY id"))
	assert.Equal(t, []string{"SuperAdmin", "Admin", "User"}, names)

	v, err := database.Version(context.Background(), db.DB, "sqlite")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestOpen_ForeignKeysEnforced(t *testing.T) {
	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec("INSERT INTO users (email, password_hash, role_id) VALUES ('x@y.z', 'h', 99)")
	assert.Error(t, err)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := database.Open(config.DatabaseConfig{Driver: "oracle"})
	assert.ErrorIs(t, err, config.ErrUnknownDriver)
}

func TestMigrateDown(t *testing.T) {
	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.MigrateDown(context.Background(), db.DB, "sqlite"))

	_, err = db.Exec("SELECT 1 FROM users")
	assert.Error(t, err)
}
