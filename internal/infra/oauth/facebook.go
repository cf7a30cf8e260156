package oauth

import (
	"context"

	"authsvc/internal/domain/entity"
	domainerrors "authsvc/internal/domain/errors"
	"authsvc/internal/domain/service"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
)

const facebookProfileURL = "https://graph.facebook.com/v19.0/me?fields=id,name,email,picture.type(large)"

type facebookProvider struct {
	baseProvider
	profileURL string
}

func newFacebookProvider(clientID, clientSecret, redirectURL string) *facebookProvider {
	return &facebookProvider{
		baseProvider: newBaseProvider(entity.ProviderFacebook, &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     facebook.Endpoint,
			RedirectURL:  redirectURL,
			Scopes:       []string{"email", "public_profile"},
		}),
		profileURL: facebookProfileURL,
	}
}

// NormalizeIdentity reads the Graph profile. Graph only returns confirmed addresses,
// so a present email counts as verified.
func (p *facebookProvider) NormalizeIdentity(ctx context.Context, token *service.ProviderToken) (*service.ExternalIdentity, error) {
	var profile struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Picture struct {
			Data struct {
				URL string `json:"url"`
			} `json:"data"`
		} `json:"picture"`
	}
	if err := p.getJSON(ctx, token, p.profileURL, &profile); err != nil {
		return nil, err
	}

	if profile.ID == "" {
		return nil, domainerrors.ErrBadPayload.WithDetails("facebook profile has no id")
	}

	email := entity.StringPtr(profile.Email)

	return &service.ExternalIdentity{
		ProviderID:    profile.ID,
		Name:          profile.Name,
		Email:         email,
		EmailVerified: email != nil,
		ProfileImage:  entity.StringPtr(profile.Picture.Data.URL),
	}, nil
}
