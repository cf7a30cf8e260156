package oauth

import (
	"context"

	"authsvc/internal/domain/entity"
	domainerrors "authsvc/internal/domain/errors"
	"authsvc/internal/domain/service"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// IDTokenValidator checks a Google id_token against the client id.
type IDTokenValidator func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)

type googleProvider struct {
	baseProvider
	validate    IDTokenValidator
	userInfoURL string
}

func newGoogleProvider(clientID, clientSecret, redirectURL string) *googleProvider {
	return &googleProvider{
		baseProvider: newBaseProvider(entity.ProviderGoogle, &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "profile", "email"},
		}, oauth2.AccessTypeOffline),
		validate:    idtoken.Validate,
		userInfoURL: googleUserInfoURL,
	}
}

// NormalizeIdentity prefers the signed id_token and falls back to the userinfo endpoint.
// The email is only adopted when Google reports it verified.
func (p *googleProvider) NormalizeIdentity(ctx context.Context, token *service.ProviderToken) (*service.ExternalIdentity, error) {
	if token == nil {
		return nil, domainerrors.ErrBadPayload.WithDetails("missing provider token")
	}

	if token.IDToken != "" {
		payload, err := p.validate(ctx, token.IDToken, p.config.ClientID)
		if err != nil {
			return nil, domainerrors.ErrBadPayload.WithDetails("invalid google id_token: " + err.Error())
		}

		return googleIdentity(
			payload.Subject,
			claimString(payload.Claims, "name"),
			claimString(payload.Claims, "email"),
			claimBool(payload.Claims, "email_verified"),
			claimString(payload.Claims, "picture"),
		)
	}

	var info struct {
		Sub           string `json:"sub"`
		Name          string `json:"name"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Picture       string `json:"picture"`
	}
	if err := p.getJSON(ctx, token, p.userInfoURL, &info); err != nil {
		return nil, err
	}

	return googleIdentity(info.Sub, info.Name, info.Email, info.EmailVerified, info.Picture)
}

func googleIdentity(sub, name, email string, emailVerified bool, picture string) (*service.ExternalIdentity, error) {
	if sub == "" {
		return nil, domainerrors.ErrBadPayload.WithDetails("google identity has no subject")
	}

	identity := &service.ExternalIdentity{
		ProviderID:   sub,
		Name:         name,
		ProfileImage: entity.StringPtr(picture),
	}
	if emailVerified {
		identity.Email = entity.StringPtr(email)
		identity.EmailVerified = identity.Email != nil
	}

	return identity, nil
}

func claimString(claims map[string]any, key string) string {
	value, _ := claims[key].(string)

	return value
}

// claimBool accepts both JSON booleans and the "true" strings some issuers emit.
func claimBool(claims map[string]any, key string) bool {
	switch value := claims[key].(type) {
	case bool:
		return value
	case string:
		return value == "true"
	default:
		return false
	}
}
