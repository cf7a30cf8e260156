package oauth

import (
	"log/slog"
	"strings"

	"authsvc/config"
	"authsvc/internal/domain/entity"
	domainerrors "authsvc/internal/domain/errors"
	"authsvc/internal/domain/service"
)

// Registry dispatches by provider type over the configured adapters.
type Registry struct {
	providers map[entity.ProviderType]service.OAuthProvider
}

// NewRegistry enables each provider whose client id and secret are configured.
// Callback URLs are {oauth.callbackBaseURL}/{provider slug}.
func NewRegistry(cfg *config.Config, logger *slog.Logger) service.OAuthProviderRegistry {
	registry := &Registry{providers: make(map[entity.ProviderType]service.OAuthProvider)}
	if cfg.OAuth == nil {
		return registry
	}

	base := strings.TrimRight(cfg.OAuth.CallbackBaseURL, "/")
	redirect := func(provider entity.ProviderType) string {
		return base + "/" + provider.Slug()
	}

	if cfg.OAuth.Google.Enabled() {
		registry.Register(newGoogleProvider(cfg.OAuth.Google.ClientID, cfg.OAuth.Google.ClientSecret, redirect(entity.ProviderGoogle)))
	}
	if cfg.OAuth.Facebook.Enabled() {
		registry.Register(newFacebookProvider(cfg.OAuth.Facebook.ClientID, cfg.OAuth.Facebook.ClientSecret, redirect(entity.ProviderFacebook)))
	}
	if cfg.OAuth.GitHub.Enabled() {
		registry.Register(newGitHubProvider(cfg.OAuth.GitHub.ClientID, cfg.OAuth.GitHub.ClientSecret, redirect(entity.ProviderGitHub)))
	}

	enabled := make([]string, 0, len(registry.providers))
	for provider := range registry.providers {
		enabled = append(enabled, provider.String())
	}
	logger.Info("OAuth providers configured", slog.Any("providers", enabled))

	return registry
}

// Register adds or replaces an adapter.
func (r *Registry) Register(provider service.OAuthProvider) {
	r.providers[provider.Provider()] = provider
}

func (r *Registry) Lookup(provider entity.ProviderType) (service.OAuthProvider, error) {
	p, ok := r.providers[provider]
	if !ok {
		return nil, domainerrors.ErrInvalidProvider.WithDetails("provider " + provider.String() + " is not enabled")
	}

	return p, nil
}
