package oauth

import (
	"context"
	"strconv"

	"authsvc/internal/domain/entity"
	domainerrors "authsvc/internal/domain/errors"
	"authsvc/internal/domain/service"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const githubAPIBaseURL = "https://api.github.com"

type githubProvider struct {
	baseProvider
	apiBaseURL string
}

func newGitHubProvider(clientID, clientSecret, redirectURL string) *githubProvider {
	return &githubProvider{
		baseProvider: newBaseProvider(entity.ProviderGitHub, &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     github.Endpoint,
			RedirectURL:  redirectURL,
			Scopes:       []string{"read:user", "user:email"},
		}),
		apiBaseURL: githubAPIBaseURL,
	}
}

// NormalizeIdentity reads /user and takes the primary verified address from /user/emails.
// The public profile email is ignored because GitHub does not attest it.
func (p *githubProvider) NormalizeIdentity(ctx context.Context, token *service.ProviderToken) (*service.ExternalIdentity, error) {
	var user struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := p.getJSON(ctx, token, p.apiBaseURL+"/user", &user); err != nil {
		return nil, err
	}

	if user.ID == 0 {
		return nil, domainerrors.ErrBadPayload.WithDetails("github profile has no id")
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}

	identity := &service.ExternalIdentity{
		ProviderID:   strconv.FormatInt(user.ID, 10),
		Name:         name,
		ProfileImage: entity.StringPtr(user.AvatarURL),
	}

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := p.getJSON(ctx, token, p.apiBaseURL+"/user/emails", &emails); err != nil {
		return nil, err
	}

	for _, e := range emails {
		if e.Primary && e.Verified {
			identity.Email = entity.StringPtr(e.Email)
			identity.EmailVerified = identity.Email != nil

			break
		}
	}

	return identity, nil
}
