package usecase

import (
	"context"

	"github.com/google/uuid"
)

// VerificationUsecase covers email confirmation and password reset.
type VerificationUsecase interface {
	// VerifyEmail confirms the user's pending code.
	VerifyEmail(ctx context.Context, userID uuid.UUID, code string) error
	// ResendVerification replaces the pending code and mails it again.
	ResendVerification(ctx context.Context, userID uuid.UUID) error
	// ForgotPassword mails a reset link. Unknown addresses succeed silently.
	ForgotPassword(ctx context.Context, email string) error
	// ResetPassword consumes a reset token and sets the new password.
	ResetPassword(ctx context.Context, token, newPassword string) error
}
