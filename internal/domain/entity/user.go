// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// User is the identity record shared by password and OAuth logins.
type User struct {
	ID            uuid.UUID // The Global Unique Identifier (GUID) for the user.
	Name          string    // The user's display name.
	Email         *string   // Nil for OAuth-only accounts whose provider did not share a usable email.
	EmailVerified bool      // Set once the user proved control of Email (code, OAuth or password reset).
	PasswordHash  *string   // Nil means the account can only sign in through a linked provider.
	ProfileImage  *string   // Avatar URL, usually refreshed from the OAuth provider.
	Role          Role      // Authorization role, USER unless promoted.
	TokenVersion  int       // Bumped by a password reset; refresh tokens minted for an older version are rejected.
	CreatedAt     time.Time // Timestamp of when this user account was created.
	UpdatedAt     time.Time // Timestamp of the last modification to this user's data.
}

// HasPassword reports whether the user can sign in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// EmailAddress returns the email or an empty string.
func (u *User) EmailAddress() string {
	if u.Email == nil {
		return ""
	}

	return *u.Email
}

// StringPtr returns nil for an empty string, otherwise a pointer to a copy of s.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
