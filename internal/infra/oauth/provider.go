// Package oauth adapts external identity providers to the service.OAuthProvider contract
// using golang.org/x/oauth2 for the authorization-code flow.
package oauth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"authsvc/internal/domain/entity"
	domainerrors "authsvc/internal/domain/errors"
	"authsvc/internal/domain/service"

	"golang.org/x/oauth2"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	maxProfileBodySize = 1 << 20
)

// baseProvider carries the oauth2 configuration shared by every provider.
type baseProvider struct {
	providerType entity.ProviderType
	config       *oauth2.Config
	authOptions  []oauth2.AuthCodeOption
	httpClient   *http.Client
}

func newBaseProvider(providerType entity.ProviderType, cfg *oauth2.Config, opts ...oauth2.AuthCodeOption) baseProvider {
	return baseProvider{
		providerType: providerType,
		config:       cfg,
		authOptions:  opts,
		httpClient:   &http.Client{Timeout: defaultHTTPTimeout},
	}
}

func (p *baseProvider) Provider() entity.ProviderType {
	return p.providerType
}

func (p *baseProvider) AuthorizationURL(state string) string {
	return p.config.AuthCodeURL(state, p.authOptions...)
}

// ExchangeCode trades the authorization code at the provider's token endpoint.
// A rejected code is reported as Unauthorized.
func (p *baseProvider) ExchangeCode(ctx context.Context, code string) (*service.ProviderToken, error) {
	if strings.TrimSpace(code) == "" {
		return nil, domainerrors.ErrBadPayload.WithDetails("missing authorization code")
	}

	token, err := p.config.Exchange(p.clientContext(ctx), code)
	if err != nil {
		return nil, domainerrors.ErrUnauthorized.WithDetails(p.providerType.Slug() + " code exchange failed: " + err.Error())
	}

	providerToken := &service.ProviderToken{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		providerToken.IDToken = idToken
	}

	return providerToken, nil
}

func (p *baseProvider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// getJSON calls a profile endpoint with the provider access token.
func (p *baseProvider) getJSON(ctx context.Context, token *service.ProviderToken, url string, dest any) error {
	if token == nil || token.AccessToken == "" {
		return domainerrors.ErrBadPayload.WithDetails("missing provider access token")
	}

	client := oauth2.NewClient(p.clientContext(ctx), oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token.AccessToken,
		TokenType:   "Bearer",
	}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domainerrors.ErrInternalError.WithDetails(err.Error())
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return domainerrors.ErrInternalError.WithDetails(p.providerType.Slug() + " profile request failed: " + err.Error())
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxProfileBodySize)
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, body)

		return domainerrors.ErrUnauthorized.WithDetails(p.providerType.Slug() + " profile request returned " + resp.Status)
	}

	if err := json.NewDecoder(body).Decode(dest); err != nil {
		return domainerrors.ErrBadPayload.WithDetails(p.providerType.Slug() + " profile response is malformed")
	}

	return nil
}
