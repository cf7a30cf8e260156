package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"authsvc/config"
	"authsvc/internal/domain/entity"
	"authsvc/internal/domain/service"
	"authsvc/internal/errors"
)

// jwtService is a concrete implementation of the TokenCodec interface using HS256 JWTs.
// Refresh tokens are signed with their own secret; access and state tokens share the
// access secret and are told apart by the typ claim.
type jwtService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	stateTTL      time.Duration
	issuer        string
	now           func() time.Time
}

// NewJWTService is the constructor for jwtService.
// It takes configuration values to create a new token codec instance.
func NewJWTService(cfg *config.Config) (service.TokenCodec, error) {
	return newJWTService(cfg, time.Now)
}

func newJWTService(cfg *config.Config, now func() time.Time) (*jwtService, error) {
	if cfg.SecretKey.Access == "" || cfg.SecretKey.Refresh == "" {
		return nil, errors.New("jwt secrets must be provided")
	}

	svc := &jwtService{
		accessSecret:  []byte(cfg.SecretKey.Access),
		refreshSecret: []byte(cfg.SecretKey.Refresh),
		accessTTL:     15 * time.Minute,
		refreshTTL:    7 * 24 * time.Hour,
		stateTTL:      10 * time.Minute,
		now:           now,
	}

	if cfg.Auth != nil {
		svc.issuer = cfg.Auth.Issuer
		if cfg.Auth.AccessTokenTTL > 0 {
			svc.accessTTL = cfg.Auth.AccessTokenTTL
		}
		if cfg.Auth.RefreshTokenTTL > 0 {
			svc.refreshTTL = cfg.Auth.RefreshTokenTTL
		}
		if cfg.Auth.OAuthStateTTL > 0 {
			svc.stateTTL = cfg.Auth.OAuthStateTTL
		}
	}

	return svc, nil
}

// IssueAccessToken creates a short-lived token carrying the user's public fields.
func (s *jwtService) IssueAccessToken(user *entity.User) (string, error) {
	claims := &service.Claims{
		Kind:             service.TokenKindAccess,
		Name:             user.Name,
		Email:            user.Email,
		EmailVerified:    user.EmailVerified,
		Role:             user.Role,
		RegisteredClaims: s.registeredClaims(user.ID.String(), s.accessTTL),
	}

	return s.sign(claims, s.accessSecret)
}

// IssueRefreshToken creates a long-lived token carrying the subject and the
// user's token version. A random jti keeps tokens issued within the same second distinct.
func (s *jwtService) IssueRefreshToken(user *entity.User) (string, error) {
	claims := &service.Claims{
		Kind:             service.TokenKindRefresh,
		TokenVersion:     user.TokenVersion,
		RegisteredClaims: s.registeredClaims(user.ID.String(), s.refreshTTL),
	}
	claims.ID = uuid.NewString()

	return s.sign(claims, s.refreshSecret)
}

// IssueStateToken signs the provider and nonce of an OAuth round-trip.
func (s *jwtService) IssueStateToken(provider entity.ProviderType, nonce string) (string, error) {
	claims := &service.Claims{
		Kind:             service.TokenKindState,
		Provider:         provider,
		Nonce:            nonce,
		RegisteredClaims: s.registeredClaims("", s.stateTTL),
	}

	return s.sign(claims, s.accessSecret)
}

// Verify checks signature, expiry, issuer and kind.
func (s *jwtService) Verify(kind service.TokenKind, token string) (*service.Claims, error) {
	secret := s.accessSecret
	if kind == service.TokenKindRefresh {
		secret = s.refreshSecret
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &service.Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, service.ErrTokenExpired
		}

		return nil, errors.Wrap(service.ErrTokenInvalid, err.Error())
	}

	if claims.Kind != kind {
		return nil, errors.Wrapf(service.ErrTokenInvalid, "expected %s token, got %q", kind, claims.Kind)
	}

	return claims, nil
}

// Decode reads the claims without checking the signature.
func (s *jwtService) Decode(token string) *service.Claims {
	claims := &service.Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}

	return claims
}

// RefreshTokenTTL returns the configured duration for refresh tokens.
func (s *jwtService) RefreshTokenTTL() time.Duration {
	return s.refreshTTL
}

func (s *jwtService) registeredClaims(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := s.now()

	return jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (s *jwtService) sign(claims *service.Claims, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}

	return signed, nil
}
