package impl

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"strings"
	"time"

	"authsvc/config"
	"authsvc/internal/domain/entity"
	domainerrors "authsvc/internal/domain/errors"
	"authsvc/internal/domain/repository"
	"authsvc/internal/domain/service"
	"authsvc/internal/errors"
	"authsvc/internal/usecase"

	"github.com/google/uuid"
	"go.uber.org/fx"
)

// authService implements the AuthUsecase interface.
type authService struct {
	txManager   repository.TransactionManager
	userRepo    repository.UserRepository
	hasher      service.PasswordHasher
	tokens      service.TokenCodec
	providers   service.OAuthProviderRegistry
	states      service.OAuthStateStore
	revocations service.TokenRevocationStore
	issuer      *VerificationIssuer
	linker      *IdentityLinker
	recorder    service.AuthEventRecorder
	stateTTL    time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// AuthServiceParams holds dependencies for AuthService, injected by Fx.
type AuthServiceParams struct {
	fx.In

	TxManager   repository.TransactionManager
	UserRepo    repository.UserRepository
	Hasher      service.PasswordHasher
	Tokens      service.TokenCodec
	Providers   service.OAuthProviderRegistry
	States      service.OAuthStateStore
	Revocations service.TokenRevocationStore
	Issuer      *VerificationIssuer
	Linker      *IdentityLinker
	Recorder    service.AuthEventRecorder `optional:"true"`
	Config      *config.Config
	Logger      *slog.Logger
}

// NewAuthService is the constructor for authService.
func NewAuthService(params AuthServiceParams) usecase.AuthUsecase {
	stateTTL := 10 * time.Minute
	if params.Config != nil && params.Config.Auth != nil && params.Config.Auth.OAuthStateTTL > 0 {
		stateTTL = params.Config.Auth.OAuthStateTTL
	}

	return &authService{
		txManager:   params.TxManager,
		userRepo:    params.UserRepo,
		hasher:      params.Hasher,
		tokens:      params.Tokens,
		providers:   params.Providers,
		states:      params.States,
		revocations: params.Revocations,
		issuer:      params.Issuer,
		linker:      params.Linker,
		recorder:    params.Recorder,
		stateTTL:    stateTTL,
		logger:      params.Logger,
		now:         time.Now,
	}
}

func (srv *authService) log(ctx context.Context) *slog.Logger {
	return requestLogger(ctx, srv.logger)
}

// Register creates a password account, stores its first verification code and signs it in.
func (srv *authService) Register(ctx context.Context, input *usecase.RegisterInput) (output *usecase.AuthOutput, err error) {
	defer func() { record(srv.recorder, service.EventRegister, err) }()

	email := normalizeEmail(input.Email)
	if email == "" || input.Password == "" || strings.TrimSpace(input.Name) == "" {
		return nil, errors.Wrap(domainerrors.ErrBadPayload, "name, email and password are required")
	}

	hashedPassword, err := srv.hasher.Hash(input.Password)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash password during registration")
	}

	var (
		newUser      *entity.User
		verification *entity.EmailVerification
	)

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		userRepo := repoFactory.UserRepo()

		_, findErr := userRepo.FindByEmail(ctx, email)
		if findErr == nil {
			return errors.Wrap(domainerrors.ErrEmailInUse, "registration rejected")
		}
		if !errors.Is(findErr, repository.ErrUserNotFound) {
			return errors.Wrap(findErr, "failed to find user by email")
		}

		newUser = &entity.User{
			Name:         strings.TrimSpace(input.Name),
			Email:        &email,
			PasswordHash: &hashedPassword,
			Role:         entity.RoleUser,
		}

		// A concurrent registration of the same address surfaces here as ErrDuplicate.
		if err := userRepo.Create(ctx, newUser); err != nil {
			return errors.Wrap(err, "failed to create user during registration")
		}

		var upsertErr error
		verification, upsertErr = srv.issuer.upsertEmailVerification(ctx, repoFactory, newUser)

		return upsertErr
	})
	if err != nil {
		srv.log(ctx).Warn("Registration failed", slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to execute registration transaction")
	}

	srv.issuer.sendVerificationMail(ctx, newUser, verification)

	output, err = issueSession(srv.tokens, newUser)
	if err != nil {
		return nil, err
	}

	srv.log(ctx).Info("User registered", slog.Any("userID", newUser.ID))

	return output, nil
}

// Login authenticates with email and password.
func (srv *authService) Login(ctx context.Context, input *usecase.LoginInput) (output *usecase.AuthOutput, err error) {
	defer func() { record(srv.recorder, service.EventLogin, err) }()

	user, err := srv.userRepo.FindByEmail(ctx, normalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			srv.hasher.Equalize(input.Password)

			return nil, errors.Wrap(domainerrors.ErrInvalidCredentials, "login failed")
		}

		return nil, errors.Wrap(err, "failed to find user by email")
	}

	if !user.HasPassword() {
		return nil, errors.Wrap(domainerrors.ErrOAuthOnly, "login failed")
	}

	// bcrypt is CPU-bound, so it runs outside any transaction.
	if !srv.hasher.Check(input.Password, *user.PasswordHash) {
		srv.log(ctx).Warn("Login failed", slog.Any("userID", user.ID), slog.Any("error", domainerrors.ErrInvalidCredentials))

		return nil, errors.Wrap(domainerrors.ErrInvalidCredentials, "login failed")
	}

	output, err = issueSession(srv.tokens, user)
	if err != nil {
		return nil, err
	}

	srv.log(ctx).Debug("User logged in", slog.Any("userID", user.ID))

	return output, nil
}

// OAuthConnect prepares the provider redirect and the nonce that binds the browser to it.
func (srv *authService) OAuthConnect(ctx context.Context, providerName string) (*usecase.OAuthConnectOutput, error) {
	provider, err := srv.lookupProvider(providerName)
	if err != nil {
		return nil, err
	}

	nonce := uuid.NewString()
	if err := srv.states.Save(ctx, nonce, srv.stateTTL); err != nil {
		return nil, errors.Wrap(err, "failed to store oauth state")
	}

	state, err := srv.tokens.IssueStateToken(provider.Provider(), nonce)
	if err != nil {
		return nil, errors.Wrap(err, "failed to issue oauth state")
	}

	return &usecase.OAuthConnectOutput{
		RedirectURL: provider.AuthorizationURL(state),
		Nonce:       nonce,
	}, nil
}

// OAuthCallback validates the state round-trip, exchanges the code and signs in the linked user.
func (srv *authService) OAuthCallback(ctx context.Context, input *usecase.OAuthCallbackInput) (output *usecase.AuthOutput, err error) {
	defer func() { record(srv.recorder, service.EventOAuthLogin, err) }()

	provider, err := srv.lookupProvider(input.Provider)
	if err != nil {
		return nil, err
	}

	if input.ProviderError != "" {
		return nil, errors.Wrapf(domainerrors.ErrUnauthorized, "provider denied authorization: %s", input.ProviderError)
	}

	if err := srv.checkState(ctx, provider.Provider(), input.State, input.StateCookie); err != nil {
		srv.log(ctx).Warn("OAuth state rejected", slog.String("provider", provider.Provider().String()), slog.Any("error", err))

		return nil, err
	}

	providerToken, err := provider.ExchangeCode(ctx, input.Code)
	if err != nil {
		return nil, errors.Wrap(err, "failed to exchange authorization code")
	}

	user, err := srv.linker.UpsertUserWithToken(ctx, provider, providerToken)
	if err != nil {
		return nil, errors.Wrap(err, "failed to link oauth identity")
	}

	output, err = issueSession(srv.tokens, user)
	if err != nil {
		return nil, err
	}

	srv.log(ctx).Info("OAuth login", slog.String("provider", provider.Provider().String()), slog.Any("userID", user.ID))

	return output, nil
}

func (srv *authService) lookupProvider(name string) (service.OAuthProvider, error) {
	providerType, ok := entity.ParseProviderType(name)
	if !ok {
		return nil, errors.Wrapf(domainerrors.ErrInvalidProvider, "unknown provider %q", name)
	}

	provider, err := srv.providers.Lookup(providerType)
	if err != nil {
		return nil, errors.Wrap(err, "provider lookup failed")
	}

	return provider, nil
}

// checkState enforces the CSRF binding: the state names this provider, carries the
// nonce pinned in the browser cookie, is consumed exactly once, and is signed by us.
func (srv *authService) checkState(ctx context.Context, provider entity.ProviderType, state, cookieNonce string) error {
	unauthorized := func(reason string) error {
		return errors.Wrap(domainerrors.ErrUnauthorized, reason)
	}

	claims := srv.tokens.Decode(state)
	if claims == nil || claims.Kind != service.TokenKindState {
		return unauthorized("malformed oauth state")
	}
	if claims.Provider != provider {
		return unauthorized("oauth state issued for another provider")
	}
	if cookieNonce == "" || subtle.ConstantTimeCompare([]byte(claims.Nonce), []byte(cookieNonce)) != 1 {
		return unauthorized("oauth state does not match cookie")
	}

	// Consume before verifying so a forged state still burns the nonce.
	consumed, err := srv.states.Consume(ctx, claims.Nonce)
	if err != nil {
		return errors.Wrap(err, "failed to consume oauth state")
	}
	if !consumed {
		return unauthorized("oauth state already used or expired")
	}

	if _, err := srv.tokens.Verify(service.TokenKindState, state); err != nil {
		return unauthorized("oauth state signature rejected")
	}

	return nil
}

// RefreshTokens exchanges a refresh token for a new pair and revokes the presented one.
func (srv *authService) RefreshTokens(ctx context.Context, refreshToken string) (output *usecase.AuthOutput, err error) {
	defer func() { record(srv.recorder, service.EventRefresh, err) }()

	if refreshToken == "" {
		return nil, errors.Wrap(domainerrors.ErrUnauthorized, "missing refresh token")
	}

	claims, err := srv.tokens.Verify(service.TokenKindRefresh, refreshToken)
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrUnauthorized, err.Error())
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrUnauthorized, "refresh token subject is not a user id")
	}

	// Claiming revokes the token before the new pair exists, so of two concurrent
	// refreshes with one token only one gets through.
	claimed, err := srv.revocations.Claim(ctx, refreshToken, srv.expiryOf(claims))
	if err != nil {
		return nil, errors.Wrap(err, "failed to claim refresh token")
	}
	if !claimed {
		srv.log(ctx).Warn("Revoked refresh token presented", slog.Any("userID", userID))

		return nil, errors.Wrap(domainerrors.ErrUnauthorized, "refresh token revoked")
	}

	user, err := srv.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, errors.Wrap(domainerrors.ErrUnauthorized, "refresh token owner no longer exists")
		}

		return nil, errors.Wrap(err, "failed to find user")
	}

	if claims.TokenVersion != user.TokenVersion {
		srv.log(ctx).Warn("Refresh token predates a password reset", slog.Any("userID", userID))

		return nil, errors.Wrap(domainerrors.ErrUnauthorized, "refresh token revoked by password reset")
	}

	return issueSession(srv.tokens, user)
}

// Logout revokes the presented refresh token when it is still usable.
func (srv *authService) Logout(ctx context.Context, refreshToken string) (err error) {
	defer func() { record(srv.recorder, service.EventLogout, err) }()

	if refreshToken == "" {
		return nil
	}

	claims, verifyErr := srv.tokens.Verify(service.TokenKindRefresh, refreshToken)
	if verifyErr != nil {
		// Nothing to revoke: the token cannot be exchanged anyway.
		srv.log(ctx).Debug("Logout with unusable refresh token", slog.Any("error", verifyErr))

		return nil
	}

	srv.revoke(ctx, refreshToken, claims)

	return nil
}

func (srv *authService) expiryOf(claims *service.Claims) time.Time {
	if claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}

	return srv.now().Add(srv.tokens.RefreshTokenTTL())
}

func (srv *authService) revoke(ctx context.Context, refreshToken string, claims *service.Claims) {
	if err := srv.revocations.Revoke(ctx, refreshToken, srv.expiryOf(claims)); err != nil {
		srv.log(ctx).Error("Failed to revoke refresh token", slog.String("subject", claims.Subject), slog.Any("error", err))
	}
}
