package entity

import (
	"time"

	"github.com/google/uuid"
)

// AuthProvider links an external provider account to a local user.
// ID is the provider's subject identifier and doubles as the primary key.
type AuthProvider struct {
	ID        string       // The provider's subject identifier (e.g., Google's 'sub' claim).
	Provider  ProviderType // Which provider issued ID.
	UserID    uuid.UUID    // The owning user.
	CreatedAt time.Time
	UpdatedAt time.Time // Touched on every successful login through this link.
}
