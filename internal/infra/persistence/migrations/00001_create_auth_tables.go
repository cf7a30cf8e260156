package migrations

import (
	"context"
	"database/sql"

	"authsvc/internal/infra/persistence/model"

	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	goose.AddMigrationContext(upCreateAuthTables, downCreateAuthTables)
}

func openTx(tx *sql.Tx) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

func upCreateAuthTables(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := openTx(tx)
	if err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).AutoMigrate(
		&model.UserModel{},
		&model.AuthProviderModel{},
		&model.EmailVerificationModel{},
		&model.PasswordResetTokenModel{},
	); err != nil {
		return err
	}

	m := gormDB.WithContext(ctx).Migrator()
	if !m.HasConstraint(&model.UserModel{}, "AuthProviders") {
		if err := m.CreateConstraint(&model.UserModel{}, "AuthProviders"); err != nil {
			return err
		}
	}

	return nil
}

func downCreateAuthTables(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := openTx(tx)
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Migrator().DropTable(
		&model.PasswordResetTokenModel{},
		&model.EmailVerificationModel{},
		&model.AuthProviderModel{},
		&model.UserModel{},
	)
}
