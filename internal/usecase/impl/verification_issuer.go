package impl

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"log/slog"
	"math/big"
	"time"

	"authsvc/config"
	"authsvc/internal/domain/entity"
	domainerrors "authsvc/internal/domain/errors"
	"authsvc/internal/domain/repository"
	"authsvc/internal/domain/service"
	"authsvc/internal/errors"

	"github.com/google/uuid"
	"go.uber.org/fx"
)

const (
	verificationCodeMin   = 10000
	verificationCodeRange = 90000
)

// VerificationIssuer owns the lifecycle of email verification codes and
// password reset tokens. Each user has at most one live record of each kind.
type VerificationIssuer struct {
	txManager       repository.TransactionManager
	hasher          service.PasswordHasher
	mailer          service.Mailer
	codeTTL         time.Duration
	resetTTL        time.Duration
	resetURL        string
	logger          *slog.Logger
	now             func() time.Time
	generateCode    func() (string, error)
	generateResetID func() (string, error)
}

// VerificationIssuerParams holds dependencies for VerificationIssuer, injected by Fx.
type VerificationIssuerParams struct {
	fx.In

	TxManager repository.TransactionManager
	Hasher    service.PasswordHasher
	Mailer    service.Mailer
	Config    *config.Config
	Logger    *slog.Logger
}

// NewVerificationIssuer wires the issuer from configuration.
func NewVerificationIssuer(params VerificationIssuerParams) *VerificationIssuer {
	issuer := &VerificationIssuer{
		txManager:       params.TxManager,
		hasher:          params.Hasher,
		mailer:          params.Mailer,
		logger:          params.Logger,
		now:             time.Now,
		generateCode:    randomVerificationCode,
		generateResetID: randomResetToken,
	}

	if params.Config != nil && params.Config.Auth != nil {
		issuer.codeTTL = params.Config.Auth.VerificationCodeTTL
		issuer.resetTTL = params.Config.Auth.PasswordResetTTL
	}
	if params.Config != nil && params.Config.Mail != nil {
		issuer.resetURL = params.Config.Mail.ResetPasswordURL
	}

	return issuer
}

func (iss *VerificationIssuer) log(ctx context.Context) *slog.Logger {
	return requestLogger(ctx, iss.logger)
}

// IssueEmailVerification replaces the user's pending code and mails the new one.
func (iss *VerificationIssuer) IssueEmailVerification(ctx context.Context, userID uuid.UUID) error {
	var (
		user         *entity.User
		verification *entity.EmailVerification
	)

	err := iss.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		var err error

		user, err = repoFactory.UserRepo().FindByID(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return errors.Wrap(domainerrors.ErrUserNotFound, "cannot issue verification")
			}

			return errors.Wrap(err, "failed to find user")
		}

		if user.EmailVerified {
			return errors.Wrap(domainerrors.ErrAlreadyVerified, "cannot issue verification")
		}

		verification, err = iss.upsertEmailVerification(ctx, repoFactory, user)

		return err
	})
	if err != nil {
		return errors.Wrap(err, "failed to issue email verification")
	}

	iss.sendVerificationMail(ctx, user, verification)

	return nil
}

// upsertEmailVerification stores a fresh code for user inside the caller's transaction.
func (iss *VerificationIssuer) upsertEmailVerification(
	ctx context.Context,
	repoFactory repository.RepositoryFactory,
	user *entity.User,
) (*entity.EmailVerification, error) {
	if user.Email == nil {
		return nil, errors.Wrap(domainerrors.ErrBadPayload, "user has no email address to verify")
	}

	code, err := iss.generateCode()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate verification code")
	}

	verification := &entity.EmailVerification{
		UserID:    user.ID,
		Code:      code,
		ExpiresAt: iss.now().Add(iss.codeTTL),
	}

	if err := repoFactory.EmailVerificationRepo().Upsert(ctx, verification); err != nil {
		return nil, errors.Wrap(err, "failed to store email verification")
	}

	return verification, nil
}

// sendVerificationMail hands the message to the mailer. Delivery failures are logged, not returned:
// the code is already stored and the user can ask for it again.
func (iss *VerificationIssuer) sendVerificationMail(ctx context.Context, user *entity.User, verification *entity.EmailVerification) {
	mail := verificationMail(user, verification.Code, iss.codeTTL)
	if err := iss.mailer.Send(ctx, mail); err != nil {
		iss.log(ctx).Error("Failed to send verification mail", slog.Any("userID", user.ID), slog.Any("error", err))
	}
}

// ConfirmEmailVerification checks code against the pending record and, on success,
// deletes the record and marks the email verified in one transaction.
func (iss *VerificationIssuer) ConfirmEmailVerification(ctx context.Context, userID uuid.UUID, code string) error {
	err := iss.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		user, err := repoFactory.UserRepo().FindByID(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return errors.Wrap(domainerrors.ErrUserNotFound, "cannot confirm verification")
			}

			return errors.Wrap(err, "failed to find user")
		}

		if user.EmailVerified {
			return errors.Wrap(domainerrors.ErrAlreadyVerified, "cannot confirm verification")
		}
		if !isVerificationCode(code) {
			return errors.Wrap(domainerrors.ErrInvalidCode, "malformed verification code")
		}

		verificationRepo := repoFactory.EmailVerificationRepo()

		// The row lock serializes concurrent confirmations; the loser finds the row gone.
		verification, err := verificationRepo.FindByUserID(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrVerificationNotFound) {
				return errors.Wrap(domainerrors.ErrInvalidCode, "no pending verification")
			}

			return errors.Wrap(err, "failed to find email verification")
		}

		if subtle.ConstantTimeCompare([]byte(verification.Code), []byte(code)) != 1 {
			return errors.Wrap(domainerrors.ErrInvalidCode, "verification code mismatch")
		}

		if verification.IsExpired(iss.now()) {
			return errors.Wrap(domainerrors.ErrCodeExpired, "verification code expired")
		}

		deleted, err := verificationRepo.DeleteByUserID(ctx, userID)
		if err != nil {
			return errors.Wrap(err, "failed to delete email verification")
		}
		if !deleted {
			return errors.Wrap(domainerrors.ErrInvalidCode, "verification already consumed")
		}

		if err := repoFactory.UserRepo().MarkEmailVerified(ctx, userID); err != nil {
			return errors.Wrap(err, "failed to mark email verified")
		}

		return nil
	})
	if err != nil {
		return errors.Wrap(err, "failed to confirm email verification")
	}

	iss.log(ctx).Info("Email verified", slog.Any("userID", userID))

	return nil
}

// IssuePasswordReset stores a reset token for the account owning email and mails the link.
// It reports no error for unknown addresses so callers cannot probe for accounts.
func (iss *VerificationIssuer) IssuePasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	var (
		user       *entity.User
		resetToken *entity.PasswordResetToken
	)

	err := iss.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		var err error

		user, err = repoFactory.UserRepo().FindByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				user = nil

				return nil
			}

			return errors.Wrap(err, "failed to find user")
		}

		token, err := iss.generateResetID()
		if err != nil {
			return errors.Wrap(err, "failed to generate reset token")
		}

		resetToken = &entity.PasswordResetToken{
			UserID:    user.ID,
			Token:     token,
			ExpiresAt: iss.now().Add(iss.resetTTL),
		}

		if err := repoFactory.PasswordResetRepo().Upsert(ctx, resetToken); err != nil {
			return errors.Wrap(err, "failed to store password reset token")
		}

		return nil
	})
	if err != nil {
		return errors.Wrap(err, "failed to issue password reset")
	}

	if user == nil {
		iss.log(ctx).Debug("Password reset requested for unknown email")

		return nil
	}

	mail := passwordResetMail(user, resetLink(iss.resetURL, resetToken.Token), iss.resetTTL)
	if err := iss.mailer.Send(ctx, mail); err != nil {
		iss.log(ctx).Error("Failed to send password reset mail", slog.Any("userID", user.ID), slog.Any("error", err))
	}

	return nil
}

// ConfirmPasswordReset consumes token and stores the new password. It returns the
// owner of the token so callers can revoke sessions.
func (iss *VerificationIssuer) ConfirmPasswordReset(ctx context.Context, token, newPassword string) (uuid.UUID, error) {
	if !isResetToken(token) {
		return uuid.Nil, errors.Wrap(domainerrors.ErrInvalidCode, "malformed reset token")
	}

	hashedPassword, err := iss.hasher.Hash(newPassword)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "failed to hash password")
	}

	var userID uuid.UUID

	err = iss.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		resetRepo := repoFactory.PasswordResetRepo()

		resetToken, err := resetRepo.FindByToken(ctx, token)
		if err != nil {
			if errors.Is(err, repository.ErrResetTokenNotFound) {
				return errors.Wrap(domainerrors.ErrInvalidCode, "unknown reset token")
			}

			return errors.Wrap(err, "failed to find reset token")
		}

		if resetToken.IsExpired(iss.now()) {
			return errors.Wrap(domainerrors.ErrInvalidCode, "reset token expired")
		}

		deleted, err := resetRepo.DeleteByToken(ctx, token)
		if err != nil {
			return errors.Wrap(err, "failed to delete reset token")
		}
		if !deleted {
			return errors.Wrap(domainerrors.ErrInvalidCode, "reset token already consumed")
		}

		if err := repoFactory.UserRepo().UpdatePassword(ctx, resetToken.UserID, hashedPassword); err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return errors.Wrap(domainerrors.ErrInvalidCode, "reset token owner no longer exists")
			}

			return errors.Wrap(err, "failed to update password")
		}

		userID = resetToken.UserID

		return nil
	})
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "failed to reset password")
	}

	iss.log(ctx).Info("Password reset completed", slog.Any("userID", userID))

	return userID, nil
}

func randomVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(verificationCodeRange))
	if err != nil {
		return "", errors.WithStack(err)
	}

	return big.NewInt(0).Add(n, big.NewInt(verificationCodeMin)).String(), nil
}

func randomResetToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", errors.WithStack(err)
	}

	return id.String(), nil
}

func isVerificationCode(code string) bool {
	if len(code) != 5 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}

func isResetToken(token string) bool {
	id, err := uuid.Parse(token)
	if err != nil {
		return false
	}

	return id.Version() == 4 && len(token) == 36
}
