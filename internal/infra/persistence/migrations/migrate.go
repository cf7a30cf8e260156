// Package migrations holds the goose migrations for the auth schema. Migrations are
// registered as Go functions at init, so no migration files need to ship with the binary.
package migrations

import (
	"context"
	"database/sql"

	"authsvc/internal/errors"

	"github.com/pressly/goose/v3"
)

// Go migrations are registered globally; the directory only has to exist.
const migrationsDir = "."

func setup() error {
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "failed to set goose dialect")
	}

	return nil
}

// Up applies all pending migrations.
func Up(ctx context.Context, db *sql.DB) error {
	if err := setup(); err != nil {
		return err
	}

	return errors.Wrap(goose.UpContext(ctx, db, migrationsDir), "failed to apply migrations")
}

// Down rolls back the most recent migration.
func Down(ctx context.Context, db *sql.DB) error {
	if err := setup(); err != nil {
		return err
	}

	return errors.Wrap(goose.DownContext(ctx, db, migrationsDir), "failed to roll back migration")
}

// Status prints the applied state of every migration through goose's logger.
func Status(ctx context.Context, db *sql.DB) error {
	if err := setup(); err != nil {
		return err
	}

	return errors.Wrap(goose.StatusContext(ctx, db, migrationsDir), "failed to read migration status")
}

// Version returns the current schema version.
func Version(ctx context.Context, db *sql.DB) (int64, error) {
	if err := setup(); err != nil {
		return 0, err
	}

	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, errors.Wrap(err, "failed to read schema version")
	}

	return version, nil
}
