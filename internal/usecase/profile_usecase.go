package usecase

import (
	"context"

	"authsvc/internal/domain/entity"

	"github.com/google/uuid"
)

// ProfileUsecase defines the interface for profile-related business operations.
type ProfileUsecase interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*entity.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, input *UpdateProfileInput) (*entity.User, error)
}

// UpdateProfileInput holds the optional fields of PATCH /me. Nil leaves a field untouched.
type UpdateProfileInput struct {
	Name         *string
	ProfileImage *string
	Password     *string
}
