package impl

import (
	"context"
	"net/url"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"authsvc/internal/domain/entity"
	domainerrors "authsvc/internal/domain/errors"
	"authsvc/internal/domain/service"
	"authsvc/internal/errors"
	"authsvc/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fiveDigits = regexp.MustCompile(`^\d{5}$`)

func TestAuthService_Register_IssuesVerificationAndTokens(t *testing.T) {
	f := newAuthFixtures(t)
	ctx := context.Background()

	before := time.Now()
	output, err := f.auth.Register(ctx, &usecase.RegisterInput{
		Name:     "Ada Lovelace",
		Email:    "  Ada@Example.COM ",
		Password: "correct horse battery staple",
	})
	after := time.Now()
	require.NoError(t, err)

	require.NotNil(t, output.User)
	assert.Equal(t, "ada@example.com", output.User.EmailAddress())
	assert.False(t, output.User.EmailVerified)
	assert.Equal(t, entity.RoleUser, output.User.Role)

	stored := f.db.user(t, output.User.ID)
	require.NotNil(t, stored.PasswordHash)
	assert.True(t, f.hasher.Check("correct horse battery staple", *stored.PasswordHash))

	verification, ok := f.db.verification(output.User.ID)
	require.True(t, ok)
	assert.Regexp(t, fiveDigits, verification.Code)
	assert.WithinRange(t, verification.ExpiresAt, before.Add(30*time.Minute), after.Add(30*time.Minute))

	mail := f.mailer.last()
	require.NotNil(t, mail)
	assert.Equal(t, "ada@example.com", mail.To)
	assert.Contains(t, mail.Body, verification.Code)

	accessClaims, err := f.tokens.Verify(service.TokenKindAccess, output.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, output.User.ID.String(), accessClaims.Subject)
	assert.False(t, accessClaims.EmailVerified)

	refreshClaims, err := f.tokens.Verify(service.TokenKindRefresh, output.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, output.User.ID.String(), refreshClaims.Subject)

	assert.Equal(t, 1, f.recorder.count(service.EventRegister, true))
}

func TestAuthService_Register_EmailInUse(t *testing.T) {
	f := newAuthFixtures(t)
	f.seedPasswordUser(t, "ada@example.com", "secret-password")

	output, err := f.auth.Register(context.Background(), &usecase.RegisterInput{
		Name:     "Another Ada",
		Email:    "ADA@example.com",
		Password: "another-password",
	})

	require.Error(t, err)
	assert.Nil(t, output)
	assert.True(t, errors.Is(err, domainerrors.ErrEmailInUse))
	assert.Equal(t, 1, f.db.userCount())
	assert.Zero(t, f.mailer.count())
	assert.Equal(t, 1, f.recorder.count(service.EventRegister, false))
}

func TestAuthService_Register_ConcurrentInsertSurfacesDuplicate(t *testing.T) {
	f := newAuthFixtures(t)
	f.db.beforeUserCreate = func(db *fakeDB, user *entity.User) {
		db.beforeUserCreate = nil
		db.committed(func(s *fakeState) {
			id := uuid.New()
			s.users[id] = entity.User{ID: id, Name: "Winner", Email: entity.StringPtr(user.EmailAddress()), Role: entity.RoleUser}
		})
	}

	_, err := f.auth.Register(context.Background(), &usecase.RegisterInput{
		Name:     "Loser",
		Email:    "race@example.com",
		Password: "password",
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrDuplicate))
	assert.Equal(t, 1, f.db.userCount())
}

func TestAuthService_Register_RequiresFields(t *testing.T) {
	f := newAuthFixtures(t)

	_, err := f.auth.Register(context.Background(), &usecase.RegisterInput{Email: "a@example.com", Password: "pw"})

	assert.True(t, errors.Is(err, domainerrors.ErrBadPayload))
}

func TestAuthService_Login(t *testing.T) {
	f := newAuthFixtures(t)
	user := f.seedPasswordUser(t, "ada@example.com", "secret-password")
	f.db.seedUser(t, entity.User{Name: "OAuth Only", Email: entity.StringPtr("oauth@example.com"), EmailVerified: true})

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{name: "success", email: "Ada@Example.com", password: "secret-password"},
		{name: "wrong password", email: "ada@example.com", password: "nope", wantErr: domainerrors.ErrInvalidCredentials},
		{name: "unknown email", email: "ghost@example.com", password: "secret-password", wantErr: domainerrors.ErrInvalidCredentials},
		{name: "oauth only account", email: "oauth@example.com", password: "anything", wantErr: domainerrors.ErrOAuthOnly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := f.auth.Login(context.Background(), &usecase.LoginInput{Email: tt.email, Password: tt.password})

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.Nil(t, output)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, user.ID, output.User.ID)
			assert.NotEmpty(t, output.AccessToken)
			assert.NotEmpty(t, output.RefreshToken)
		})
	}

	// Unknown email and wrong password must be indistinguishable.
	_, unknownErr := f.auth.Login(context.Background(), &usecase.LoginInput{Email: "ghost@example.com", Password: "x"})
	_, wrongErr := f.auth.Login(context.Background(), &usecase.LoginInput{Email: "ada@example.com", Password: "x"})
	unknownApp, ok := errors.AsType[domainerrors.AppError](unknownErr)
	require.True(t, ok)
	wrongApp, ok := errors.AsType[domainerrors.AppError](wrongErr)
	require.True(t, ok)
	assert.Equal(t, unknownApp.ErrorCode(), wrongApp.ErrorCode())
	assert.Equal(t, unknownApp.Message(), wrongApp.Message())
}

func TestAuthService_RefreshTokens_Rotates(t *testing.T) {
	f := newAuthFixtures(t)
	f.seedPasswordUser(t, "ada@example.com", "secret-password")
	ctx := context.Background()

	login, err := f.auth.Login(ctx, &usecase.LoginInput{Email: "ada@example.com", Password: "secret-password"})
	require.NoError(t, err)

	refreshed, err := f.auth.RefreshTokens(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
	assert.Equal(t, login.User.ID, refreshed.User.ID)

	_, err = f.tokens.Verify(service.TokenKindAccess, refreshed.AccessToken)
	require.NoError(t, err)

	_, err = f.auth.RefreshTokens(ctx, login.RefreshToken)
	assert.True(t, errors.Is(err, domainerrors.ErrUnauthorized), "rotated token must not be reusable")

	_, err = f.auth.RefreshTokens(ctx, refreshed.RefreshToken)
	assert.NoError(t, err)
}

func TestAuthService_RefreshTokens_ConcurrentReuseHasOneWinner(t *testing.T) {
	f := newAuthFixtures(t)
	f.seedPasswordUser(t, "ada@example.com", "secret-password")
	ctx := context.Background()

	login, err := f.auth.Login(ctx, &usecase.LoginInput{Email: "ada@example.com", Password: "secret-password"})
	require.NoError(t, err)

	const workers = 20
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.auth.RefreshTokens(ctx, login.RefreshToken); err == nil {
				successes.Add(1)
			} else {
				assert.True(t, errors.Is(err, domainerrors.ErrUnauthorized), "unexpected error %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
}

func TestAuthService_RefreshTokens_Rejects(t *testing.T) {
	f := newAuthFixtures(t)
	user := f.seedPasswordUser(t, "ada@example.com", "secret-password")
	ctx := context.Background()

	accessToken, err := f.tokens.IssueAccessToken(user)
	require.NoError(t, err)
	ghostRefresh, err := f.tokens.IssueRefreshToken(&entity.User{ID: uuid.New()})
	require.NoError(t, err)

	tests := map[string]string{
		"missing":           "",
		"garbage":           "not-a-token",
		"access as refresh": accessToken,
		"deleted user":      ghostRefresh,
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			output, err := f.auth.RefreshTokens(ctx, token)

			require.Error(t, err)
			assert.Nil(t, output)
			assert.True(t, errors.Is(err, domainerrors.ErrUnauthorized), "got %v", err)
		})
	}
}

func TestAuthService_Logout_RevokesRefreshToken(t *testing.T) {
	f := newAuthFixtures(t)
	f.seedPasswordUser(t, "ada@example.com", "secret-password")
	ctx := context.Background()

	login, err := f.auth.Login(ctx, &usecase.LoginInput{Email: "ada@example.com", Password: "secret-password"})
	require.NoError(t, err)

	require.NoError(t, f.auth.Logout(ctx, login.RefreshToken))

	_, err = f.auth.RefreshTokens(ctx, login.RefreshToken)
	assert.True(t, errors.Is(err, domainerrors.ErrUnauthorized))

	assert.NoError(t, f.auth.Logout(ctx, ""))
	assert.NoError(t, f.auth.Logout(ctx, "garbage"))
}

func connect(t *testing.T, f *authFixtures) (state, nonce string) {
	t.Helper()

	output, err := f.auth.OAuthConnect(context.Background(), "google")
	require.NoError(t, err)

	redirect, err := url.Parse(output.RedirectURL)
	require.NoError(t, err)

	return redirect.Query().Get("state"), output.Nonce
}

func TestAuthService_OAuthLogin_IsIdempotent(t *testing.T) {
	f := newAuthFixtures(t)
	ctx := context.Background()

	state, nonce := connect(t, f)
	first, err := f.auth.OAuthCallback(ctx, &usecase.OAuthCallbackInput{
		Provider: "google", Code: "code-1", State: state, StateCookie: nonce,
	})
	require.NoError(t, err)
	assert.True(t, first.User.EmailVerified)
	assert.Equal(t, "grace@example.com", first.User.EmailAddress())
	assert.False(t, first.User.HasPassword())
	assert.Equal(t, []string{"code-1"}, f.google.codes)

	state, nonce = connect(t, f)
	second, err := f.auth.OAuthCallback(ctx, &usecase.OAuthCallbackInput{
		Provider: "GOOGLE", Code: "code-2", State: state, StateCookie: nonce,
	})
	require.NoError(t, err)

	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Equal(t, 1, f.db.userCount())
	links := f.db.linksOf(first.User.ID)
	require.Len(t, links, 1)
	assert.Equal(t, "google-sub-1", links[0].ID)
	assert.Equal(t, entity.ProviderGoogle, links[0].Provider)
	assert.Equal(t, 2, f.recorder.count(service.EventOAuthLogin, true))
}

func TestAuthService_OAuthCallback_RejectsBadState(t *testing.T) {
	f := newAuthFixtures(t)
	ctx := context.Background()

	foreignState, err := f.tokens.IssueStateToken(entity.ProviderFacebook, "foreign-nonce")
	require.NoError(t, err)
	require.NoError(t, f.states.Save(ctx, "foreign-nonce", time.Minute))

	usedState, usedNonce := connect(t, f)
	_, err = f.auth.OAuthCallback(ctx, &usecase.OAuthCallbackInput{
		Provider: "google", Code: "ok", State: usedState, StateCookie: usedNonce,
	})
	require.NoError(t, err)

	tests := []struct {
		name  string
		input func() *usecase.OAuthCallbackInput
	}{
		{
			name: "missing cookie",
			input: func() *usecase.OAuthCallbackInput {
				state, _ := connect(t, f)

				return &usecase.OAuthCallbackInput{Provider: "google", Code: "c", State: state}
			},
		},
		{
			name: "cookie mismatch",
			input: func() *usecase.OAuthCallbackInput {
				state, _ := connect(t, f)

				return &usecase.OAuthCallbackInput{Provider: "google", Code: "c", State: state, StateCookie: "other"}
			},
		},
		{
			name: "state for another provider",
			input: func() *usecase.OAuthCallbackInput {
				return &usecase.OAuthCallbackInput{Provider: "google", Code: "c", State: foreignState, StateCookie: "foreign-nonce"}
			},
		},
		{
			name: "replayed state",
			input: func() *usecase.OAuthCallbackInput {
				return &usecase.OAuthCallbackInput{Provider: "google", Code: "c", State: usedState, StateCookie: usedNonce}
			},
		},
		{
			name: "malformed state",
			input: func() *usecase.OAuthCallbackInput {
				return &usecase.OAuthCallbackInput{Provider: "google", Code: "c", State: "garbage", StateCookie: "garbage"}
			},
		},
		{
			name: "provider error",
			input: func() *usecase.OAuthCallbackInput {
				state, nonce := connect(t, f)

				return &usecase.OAuthCallbackInput{Provider: "google", State: state, StateCookie: nonce, ProviderError: "access_denied"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := f.auth.OAuthCallback(ctx, tt.input())

			require.Error(t, err)
			assert.Nil(t, output)
			assert.True(t, errors.Is(err, domainerrors.ErrUnauthorized), "got %v", err)
		})
	}

	assert.Equal(t, []string{"ok"}, f.google.codes, "no code may be exchanged after a rejected state")
}

func TestAuthService_OAuth_InvalidProvider(t *testing.T) {
	f := newAuthFixtures(t)
	ctx := context.Background()

	_, err := f.auth.OAuthConnect(ctx, "myspace")
	assert.True(t, errors.Is(err, domainerrors.ErrInvalidProvider))

	// Known but not configured.
	_, err = f.auth.OAuthConnect(ctx, "github")
	assert.True(t, errors.Is(err, domainerrors.ErrInvalidProvider))

	_, err = f.auth.OAuthCallback(ctx, &usecase.OAuthCallbackInput{Provider: "myspace"})
	assert.True(t, errors.Is(err, domainerrors.ErrInvalidProvider))
}

func TestAuthService_OAuthCallback_ExchangeFailure(t *testing.T) {
	f := newAuthFixtures(t)
	f.google.exchangeErr = errors.Wrap(domainerrors.ErrUnauthorized, "code rejected")

	state, nonce := connect(t, f)
	_, err := f.auth.OAuthCallback(context.Background(), &usecase.OAuthCallbackInput{
		Provider: "google", Code: "stale", State: state, StateCookie: nonce,
	})

	assert.True(t, errors.Is(err, domainerrors.ErrUnauthorized))
	assert.Zero(t, f.db.userCount())
	assert.Equal(t, 1, f.recorder.count(service.EventOAuthLogin, false))
}
