package service

import (
	"context"
	"time"
)

// OAuthStateStore remembers issued OAuth state nonces so each can be used once.
type OAuthStateStore interface {
	// Save records the nonce for ttl.
	Save(ctx context.Context, nonce string, ttl time.Duration) error

	// Consume removes the nonce and reports whether it was present and unexpired.
	Consume(ctx context.Context, nonce string) (bool, error)
}

// TokenRevocationStore tracks refresh tokens that may no longer be exchanged.
// Tokens issued before a password reset are rejected through User.TokenVersion
// instead, so the store only deals with single tokens.
type TokenRevocationStore interface {
	// Revoke denies the token until its expiry.
	Revoke(ctx context.Context, token string, expiresAt time.Time) error

	// Claim atomically revokes the token and reports whether this call did it.
	// Of several concurrent claims of one token exactly one returns true, and a
	// token revoked earlier can never be claimed.
	Claim(ctx context.Context, token string, expiresAt time.Time) (bool, error)
}
