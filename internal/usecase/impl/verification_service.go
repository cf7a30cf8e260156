package impl

import (
	"context"

	"authsvc/internal/domain/service"
	"authsvc/internal/usecase"

	"github.com/google/uuid"
	"go.uber.org/fx"
)

// verificationService implements the VerificationUsecase interface on top of VerificationIssuer.
type verificationService struct {
	issuer   *VerificationIssuer
	recorder service.AuthEventRecorder
}

// VerificationServiceParams holds dependencies for VerificationService, injected by Fx.
type VerificationServiceParams struct {
	fx.In

	Issuer   *VerificationIssuer
	Recorder service.AuthEventRecorder `optional:"true"`
}

// NewVerificationService is the constructor for verificationService.
func NewVerificationService(params VerificationServiceParams) usecase.VerificationUsecase {
	return &verificationService{
		issuer:   params.Issuer,
		recorder: params.Recorder,
	}
}

func (srv *verificationService) VerifyEmail(ctx context.Context, userID uuid.UUID, code string) error {
	err := srv.issuer.ConfirmEmailVerification(ctx, userID, code)
	record(srv.recorder, service.EventEmailVerified, err)

	return err
}

func (srv *verificationService) ResendVerification(ctx context.Context, userID uuid.UUID) error {
	err := srv.issuer.IssueEmailVerification(ctx, userID)
	record(srv.recorder, service.EventVerificationSent, err)

	return err
}

func (srv *verificationService) ForgotPassword(ctx context.Context, email string) error {
	err := srv.issuer.IssuePasswordReset(ctx, email)
	record(srv.recorder, service.EventPasswordResetSent, err)

	return err
}

// ResetPassword sets the new password. The same write bumps the user's token
// version, which retires every refresh token issued before it.
func (srv *verificationService) ResetPassword(ctx context.Context, token, newPassword string) error {
	_, err := srv.issuer.ConfirmPasswordReset(ctx, token, newPassword)
	record(srv.recorder, service.EventPasswordReset, err)

	return err
}
