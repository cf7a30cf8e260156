package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upAddUserTokenVersion, downAddUserTokenVersion)
}

// Databases created by the first migration before the column existed get it here;
// fresh databases already have it from the model.
func upAddUserTokenVersion(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `ALTER TABLE users ADD COLUMN IF NOT EXISTS token_version integer NOT NULL DEFAULT 0`)

	return err
}

func downAddUserTokenVersion(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `ALTER TABLE users DROP COLUMN IF EXISTS token_version`)

	return err
}
