package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/mysql/*.sql migrations/sqlite/*.sql
var embedMigrations embed.FS

// dialects maps our driver names to goose dialects and migration directories.
var dialects = map[string]struct{ dialect, dir string }{
	"mysql":  {"mysql", "migrations/mysql"},
	"sqlite": {"sqlite3", "migrations/sqlite"},
}

func setup(driver string) (string, error) {
	d, ok := dialects[driver]
	if !ok {
		return "", fmt.Errorf("no migrations for driver %q", driver)
	}
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(d.dialect); err != nil {
		return "", err
	}
	return d.dir, nil
}

// Migrate runs all pending goose migrations for the driver.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	dir, err := setup(driver)
	if err != nil {
		return err
	}
	return goose.UpContext(ctx, db, dir)
}

// MigrateDown rolls back the last migration.
func MigrateDown(ctx context.Context, db *sql.DB, driver string) error {
	dir, err := setup(driver)
	if err != nil {
		return err
	}
	return goose.DownContext(ctx, db, dir)
}

// Version reports the current schema version.
func Version(ctx context.Context, db *sql.DB, driver string) (int64, error) {
	if _, err := setup(driver); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, db)
}
