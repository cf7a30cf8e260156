package postgres

import (
	"context"

	"authsvc/internal/domain/entity"
	domainerrors "authsvc/internal/domain/errors"
	"authsvc/internal/domain/repository"
	"authsvc/internal/errors"
	"authsvc/internal/infra/persistence/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// emailVerificationRepository keeps one row per user, keyed by user_id.
type emailVerificationRepository struct {
	db *gorm.DB
}

// NewEmailVerificationRepository is the constructor for emailVerificationRepository.
func NewEmailVerificationRepository(db *gorm.DB) repository.EmailVerificationRepository {
	return &emailVerificationRepository{db: db}
}

func (repo *emailVerificationRepository) Upsert(ctx context.Context, verification *entity.EmailVerification) error {
	verificationM := &model.EmailVerificationModel{
		UserID:    verification.UserID,
		Code:      verification.Code,
		ExpiresAt: verification.ExpiresAt,
	}

	err := repo.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"code", "expires_at", "updated_at"}),
		}).
		Create(verificationM).Error
	if err != nil {
		return translateWriteError(err, "failed to upsert email verification")
	}

	return nil
}

// FindByUserID takes a row lock so concurrent confirmations of the same user queue up.
func (repo *emailVerificationRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.EmailVerification, error) {
	var verificationM model.EmailVerificationModel
	err := repo.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&verificationM).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrVerificationNotFound
		}

		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to find email verification")
	}

	return &entity.EmailVerification{
		UserID:    verificationM.UserID,
		Code:      verificationM.Code,
		ExpiresAt: verificationM.ExpiresAt,
		CreatedAt: verificationM.CreatedAt,
		UpdatedAt: verificationM.UpdatedAt,
	}, nil
}

func (repo *emailVerificationRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) (bool, error) {
	result := repo.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.EmailVerificationModel{})
	if result.Error != nil {
		return false, domainerrors.NewDatabaseExecuteError(result.Error, "failed to delete email verification")
	}

	return result.RowsAffected == 1, nil
}

// passwordResetRepository keeps one row per user; token carries its own unique index.
type passwordResetRepository struct {
	db *gorm.DB
}

// NewPasswordResetRepository is the constructor for passwordResetRepository.
func NewPasswordResetRepository(db *gorm.DB) repository.PasswordResetRepository {
	return &passwordResetRepository{db: db}
}

func (repo *passwordResetRepository) Upsert(ctx context.Context, token *entity.PasswordResetToken) error {
	tokenM := &model.PasswordResetTokenModel{
		UserID:    token.UserID,
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt,
	}

	err := repo.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"token", "expires_at", "updated_at"}),
		}).
		Create(tokenM).Error
	if err != nil {
		return translateWriteError(err, "failed to upsert password reset token")
	}

	return nil
}

func (repo *passwordResetRepository) FindByToken(ctx context.Context, token string) (*entity.PasswordResetToken, error) {
	var tokenM model.PasswordResetTokenModel
	err := repo.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("token = ?", token).
		First(&tokenM).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrResetTokenNotFound
		}

		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to find password reset token")
	}

	return &entity.PasswordResetToken{
		UserID:    tokenM.UserID,
		Token:     tokenM.Token,
		ExpiresAt: tokenM.ExpiresAt,
		CreatedAt: tokenM.CreatedAt,
		UpdatedAt: tokenM.UpdatedAt,
	}, nil
}

func (repo *passwordResetRepository) DeleteByToken(ctx context.Context, token string) (bool, error) {
	result := repo.db.WithContext(ctx).Where("token = ?", token).Delete(&model.PasswordResetTokenModel{})
	if result.Error != nil {
		return false, domainerrors.NewDatabaseExecuteError(result.Error, "failed to delete password reset token")
	}

	return result.RowsAffected == 1, nil
}
