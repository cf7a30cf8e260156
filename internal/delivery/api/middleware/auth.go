package middleware

import (
	"strings"

	deliverycontext "authsvc/internal/delivery/context"
	"authsvc/internal/domain/entity"
	domainerrors "authsvc/internal/domain/errors"
	"authsvc/internal/domain/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	contextKeyClaims = "claims"
	bearerPrefix     = "Bearer "
)

// AuthMiddleware validates access tokens and enforces roles.
type AuthMiddleware struct {
	tokens service.TokenCodec
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(tokens service.TokenCodec) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Authenticate requires a valid bearer access token.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
			return domainerrors.ErrUnauthorized
		}

		claims, err := m.tokens.Verify(service.TokenKindAccess, strings.TrimSpace(header[len(bearerPrefix):]))
		if err != nil {
			return domainerrors.ErrUnauthorized
		}

		userID, err := claims.UserID()
		if err != nil {
			return domainerrors.ErrUnauthorized
		}

		c.Set(contextKeyClaims, claims)
		deliverycontext.WithUserID(c, userID)

		return next(c)
	}
}

// RequireRole only lets through users holding one of roles. It must run after Authenticate.
func (m *AuthMiddleware) RequireRole(roles ...entity.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := GetClaims(c)
			if !ok {
				return domainerrors.ErrUnauthorized
			}
			if !entity.HasAccess(claims.Role, roles...) {
				return domainerrors.ErrForbidden
			}

			return next(c)
		}
	}
}

// GetUserID returns the authenticated user's id.
func GetUserID(c echo.Context) (uuid.UUID, bool) {
	return deliverycontext.GetUserID(c)
}

// GetClaims returns the verified access token claims.
func GetClaims(c echo.Context) (*service.Claims, bool) {
	claims, ok := c.Get(contextKeyClaims).(*service.Claims)

	return claims, ok && claims != nil
}
