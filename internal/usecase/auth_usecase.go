// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"

	"authsvc/internal/domain/entity"
)

// --- Input DTOs ---

// RegisterInput defines the data required to register a password account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// LoginInput defines the data required for a user to log in.
type LoginInput struct {
	Email    string
	Password string
}

// OAuthCallbackInput carries everything the provider redirect hands back.
type OAuthCallbackInput struct {
	Provider      string
	Code          string
	State         string
	StateCookie   string // Nonce stored in the browser when the flow started.
	ProviderError string // The provider's `error` query parameter, if any.
}

// --- Output DTOs ---

// AuthOutput is returned by every flow that signs a user in.
type AuthOutput struct {
	AccessToken  string
	RefreshToken string
	User         *entity.User
}

// OAuthConnectOutput tells the delivery layer where to send the browser and
// which nonce to pin in the state cookie.
type OAuthConnectOutput struct {
	RedirectURL string
	Nonce       string
}

// AuthUsecase defines the sign-in and session operations.
// This is the contract that the delivery layer (e.g., API handlers) will depend on.
type AuthUsecase interface {
	Register(ctx context.Context, input *RegisterInput) (*AuthOutput, error)
	Login(ctx context.Context, input *LoginInput) (*AuthOutput, error)
	OAuthConnect(ctx context.Context, provider string) (*OAuthConnectOutput, error)
	OAuthCallback(ctx context.Context, input *OAuthCallbackInput) (*AuthOutput, error)
	// RefreshTokens rotates the refresh token and mints a new access token.
	RefreshTokens(ctx context.Context, refreshToken string) (*AuthOutput, error)
	// Logout revokes the presented refresh token. It never fails on a bad token.
	Logout(ctx context.Context, refreshToken string) error
}
