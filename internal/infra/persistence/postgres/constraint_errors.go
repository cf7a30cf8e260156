package postgres

import (
	domainerrors "authsvc/internal/domain/errors"
	"authsvc/internal/errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// PostgreSQL SQLSTATE codes for integrity violations.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
)

// Helper functions for PostgreSQL error checking
func isUniqueConstraintViolation(err error) bool {
	// GORM only reports ErrDuplicatedKey when TranslateError is enabled, so the driver code is checked too.
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	return pgErrorCode(err) == pgUniqueViolation
}

func isForeignKeyConstraintViolation(err error) bool {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}

	return pgErrorCode(err) == pgForeignKeyViolation
}

func isNotNullConstraintViolation(err error) bool {
	return pgErrorCode(err) == pgNotNullViolation
}

func pgErrorCode(err error) string {
	pgErr, ok := errors.AsType[*pgconn.PgError](err)
	if !ok {
		return ""
	}

	return pgErr.Code
}

func constraintName(err error) string {
	pgErr, ok := errors.AsType[*pgconn.PgError](err)
	if !ok {
		return ""
	}

	return pgErr.ConstraintName
}

// translateWriteError maps driver errors of an insert or update to domain errors.
func translateWriteError(err error, action string) error {
	switch {
	case isUniqueConstraintViolation(err):
		details := constraintName(err)
		if details == "" {
			details = action
		}

		return domainerrors.ErrDuplicate.WithDetails(details)
	case isForeignKeyConstraintViolation(err), isNotNullConstraintViolation(err):
		return domainerrors.ErrBadPayload.WithDetails(action + ": " + err.Error())
	default:
		return domainerrors.NewDatabaseExecuteError(err, action)
	}
}
