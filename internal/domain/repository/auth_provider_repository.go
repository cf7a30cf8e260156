package repository

import (
	"context"
	"errors"

	"authsvc/internal/domain/entity"
)

// ErrAuthProviderNotFound is returned when no link exists for a provider identity.
var ErrAuthProviderNotFound = errors.New("auth provider not found")

// AuthProviderRepository persists links between external identities and users.
type AuthProviderRepository interface {
	// FindByID looks up a link by the provider-scoped identity.
	FindByID(ctx context.Context, id string) (*entity.AuthProvider, error)

	// Upsert inserts the link or, when the identity is already linked, only
	// touches updated_at. The returned link carries the owning user, which may
	// differ from the requested one if another writer linked it first.
	Upsert(ctx context.Context, link *entity.AuthProvider) (*entity.AuthProvider, error)
}
