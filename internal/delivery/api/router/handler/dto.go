package handler

import (
	"time"

	"authsvc/internal/domain/entity"

	"github.com/google/uuid"
)

// UserResponse is the public view of a user. The password hash never leaves the service.
type UserResponse struct {
	ID            uuid.UUID   `json:"id"`
	Name          string      `json:"name"`
	Email         *string     `json:"email"`
	EmailVerified bool        `json:"emailVerified"`
	ProfileImage  *string     `json:"profileImage"`
	Role          entity.Role `json:"role"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

func newUserResponse(user *entity.User) *UserResponse {
	if user == nil {
		return nil
	}

	return &UserResponse{
		ID:            user.ID,
		Name:          user.Name,
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
		ProfileImage:  user.ProfileImage,
		Role:          user.Role,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	}
}

// AuthResponse is returned by login, register and the OAuth callback.
type AuthResponse struct {
	AccessToken string        `json:"accessToken"`
	User        *UserResponse `json:"user"`
}

// AccessTokenResponse is returned by the refresh endpoint.
type AccessTokenResponse struct {
	AccessToken string `json:"accessToken"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Passwords are capped at bcrypt's 72 byte input limit.
type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// updateProfileRequest leaves absent fields untouched. An empty profileImage clears the avatar.
type updateProfileRequest struct {
	Name         *string `json:"name" validate:"omitnil,min=1,max=100"`
	ProfileImage *string `json:"profileImage"`
	Password     *string `json:"password" validate:"omitnil,min=8,max=72"`
}

type profileImageRequest struct {
	ProfileImage string `json:"profileImage" validate:"url"`
}
