package service

import (
	"errors"
	"time"

	"authsvc/internal/domain/entity"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind separates tokens that share a signing key.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
	TokenKindState   TokenKind = "state"
)

var (
	// ErrTokenInvalid covers bad signatures, malformed tokens and kind mismatches.
	ErrTokenInvalid = errors.New("token is invalid")
	// ErrTokenExpired is returned when the token signature is valid but exp has passed.
	ErrTokenExpired = errors.New("token is expired")
)

// Claims defines the custom claims for the JWT tokens.
// Access tokens carry the user snapshot, refresh tokens the subject and the
// user's token version, and state tokens the provider and nonce of an OAuth round-trip.
type Claims struct {
	Kind          TokenKind           `json:"typ"`
	Name          string              `json:"name,omitempty"`
	Email         *string             `json:"email,omitempty"`
	EmailVerified bool                `json:"emailVerified,omitempty"`
	Role          entity.Role         `json:"role,omitempty"`
	Provider      entity.ProviderType `json:"provider,omitempty"`
	Nonce         string              `json:"nonce,omitempty"`
	TokenVersion  int                 `json:"ver,omitempty"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// TokenCodec issues and verifies signed tokens.
// This abstracts the details of token creation from the use cases.
type TokenCodec interface {
	// IssueAccessToken signs a short-lived token carrying the user's public fields.
	IssueAccessToken(user *entity.User) (string, error)

	// IssueRefreshToken signs a long-lived token carrying the subject and TokenVersion.
	IssueRefreshToken(user *entity.User) (string, error)

	// IssueStateToken signs the OAuth state parameter.
	IssueStateToken(provider entity.ProviderType, nonce string) (string, error)

	// Verify checks signature, expiry and kind.
	Verify(kind TokenKind, token string) (*Claims, error)

	// Decode parses claims without verifying the signature. Returns nil when malformed.
	Decode(token string) *Claims

	// RefreshTokenTTL returns the configured lifetime of refresh tokens.
	RefreshTokenTTL() time.Duration
}
