package repository

import (
	"context"
	"errors"

	"authsvc/internal/domain/entity"

	"github.com/google/uuid"
)

var (
	// ErrVerificationNotFound is returned when a user has no pending email verification.
	ErrVerificationNotFound = errors.New("email verification not found")
	// ErrResetTokenNotFound is returned when a password reset token does not exist.
	ErrResetTokenNotFound = errors.New("password reset token not found")
)

// EmailVerificationRepository stores at most one pending code per user.
type EmailVerificationRepository interface {
	// Upsert replaces the user's pending code and expiry.
	Upsert(ctx context.Context, verification *entity.EmailVerification) error

	// FindByUserID loads the pending record and locks it for the rest of the transaction.
	FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.EmailVerification, error)

	// DeleteByUserID removes the pending record and reports whether a row was deleted.
	DeleteByUserID(ctx context.Context, userID uuid.UUID) (bool, error)
}

// PasswordResetRepository stores at most one outstanding reset token per user.
type PasswordResetRepository interface {
	// Upsert replaces the user's token and expiry.
	Upsert(ctx context.Context, token *entity.PasswordResetToken) error

	// FindByToken loads the record and locks it for the rest of the transaction.
	FindByToken(ctx context.Context, token string) (*entity.PasswordResetToken, error)

	// DeleteByToken removes the record and reports whether a row was deleted.
	DeleteByToken(ctx context.Context, token string) (bool, error)
}
