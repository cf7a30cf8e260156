// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"
	"errors"

	"authsvc/internal/domain/entity"

	"github.com/google/uuid"
)

// ErrUserNotFound is a domain-specific error returned when a user is not found.
var ErrUserNotFound = errors.New("user not found")

// UserRepository defines the standard operations for user persistence.
// The application layer will depend on this interface, not the concrete implementation.
// Writes that violate a unique constraint fail with errors.ErrDuplicate from the domain errors package.
type UserRepository interface {
	// FindByID retrieves a single user by their unique ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)

	// FindByIDForUpdate retrieves the user and locks the row for the rest of the
	// transaction. Use it before Update.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.User, error)

	// FindByEmail retrieves a single user by their email address.
	FindByEmail(ctx context.Context, email string) (*entity.User, error)

	// Create persists a new user entity. ID and timestamps are assigned when zero.
	Create(ctx context.Context, user *entity.User) error

	// Update modifies the mutable profile columns of an existing user.
	Update(ctx context.Context, user *entity.User) error

	// MarkEmailVerified sets emailVerified on the user.
	MarkEmailVerified(ctx context.Context, id uuid.UUID) error

	// UpdatePassword replaces the password hash and marks the email verified,
	// since only the mailbox owner can complete a reset. It also increments
	// TokenVersion, which invalidates every refresh token issued before.
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}
