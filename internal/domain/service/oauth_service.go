package service

import (
	"context"
	"time"

	"authsvc/internal/domain/entity"
)

// ProviderToken is the result of exchanging an authorization code.
type ProviderToken struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	Expiry       time.Time
}

// ExternalIdentity is a provider profile normalized to the fields the service stores.
type ExternalIdentity struct {
	ProviderID    string
	Name          string
	Email         *string
	EmailVerified bool
	ProfileImage  *string
}

// OAuthProvider adapts one external identity provider.
type OAuthProvider interface {
	// Provider returns the provider type served by this adapter.
	Provider() entity.ProviderType

	// AuthorizationURL returns the consent URL carrying the given state.
	AuthorizationURL(state string) string

	// ExchangeCode trades an authorization code for provider tokens.
	ExchangeCode(ctx context.Context, code string) (*ProviderToken, error)

	// NormalizeIdentity fetches and normalizes the provider profile.
	NormalizeIdentity(ctx context.Context, token *ProviderToken) (*ExternalIdentity, error)
}

// OAuthProviderRegistry resolves configured providers.
type OAuthProviderRegistry interface {
	// Lookup returns the provider or ErrInvalidProvider when unknown or not configured.
	Lookup(provider entity.ProviderType) (OAuthProvider, error)
}
