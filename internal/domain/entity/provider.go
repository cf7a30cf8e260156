package entity

import "strings"

// ProviderType identifies a supported OAuth2 identity provider.
type ProviderType string

const (
	ProviderGoogle   ProviderType = "GOOGLE"
	ProviderFacebook ProviderType = "FACEBOOK"
	ProviderGitHub   ProviderType = "GITHUB"
)

// ProviderTypes lists every provider the service knows how to talk to.
var ProviderTypes = []ProviderType{ProviderGoogle, ProviderFacebook, ProviderGitHub}

// String returns the string representation of the ProviderType.
func (p ProviderType) String() string {
	return string(p)
}

// Slug is the lowercase form used in URLs, e.g. /connect/google.
func (p ProviderType) Slug() string {
	return strings.ToLower(string(p))
}

// IsValid checks if the ProviderType is a known value.
func (p ProviderType) IsValid() bool {
	switch p {
	case ProviderGoogle, ProviderFacebook, ProviderGitHub:
		return true
	default:
		return false
	}
}

// ParseProviderType converts a URL slug or enum name into a ProviderType.
func ParseProviderType(s string) (ProviderType, bool) {
	p := ProviderType(strings.ToUpper(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", false
	}

	return p, true
}
