package entity

import (
	"time"

	"github.com/google/uuid"
)

// EmailVerification is the single active email confirmation code of a user.
type EmailVerification struct {
	UserID    uuid.UUID // Unique: at most one live code per user.
	Code      string    // Five decimal digits.
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsExpired reports whether the code can no longer be used at now.
func (v *EmailVerification) IsExpired(now time.Time) bool {
	return v.ExpiresAt.Before(now)
}

// PasswordResetToken is the single active password reset token of a user.
type PasswordResetToken struct {
	UserID    uuid.UUID // Unique: at most one live token per user.
	Token     string    // Random UUIDv4.
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsExpired reports whether the token can no longer be used at now.
func (t *PasswordResetToken) IsExpired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}
