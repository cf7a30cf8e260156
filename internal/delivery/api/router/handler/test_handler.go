package handler

import (
	"net/http"

	"authsvc/internal/delivery/api/middleware"
	"authsvc/internal/delivery/api/response"
	domainerrors "authsvc/internal/domain/errors"

	"github.com/labstack/echo/v4"
)

// TestHandler handles test endpoints for middleware validation
type TestHandler struct{}

// NewTestHandler creates a new TestHandler instance
func NewTestHandler() *TestHandler {
	return &TestHandler{}
}

// TestAuthMiddleware echoes the identity the auth middleware extracted from the bearer token.
func (h *TestHandler) TestAuthMiddleware(c echo.Context) error {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		return domainerrors.ErrUnauthorized
	}

	return response.Success(c, http.StatusOK, map[string]any{
		"message": "Authentication middleware test successful",
		"userID":  claims.Subject,
		"role":    claims.Role,
		"status":  "authenticated",
	})
}

// TestPublicEndpoint tests a public endpoint (no authentication required)
func (h *TestHandler) TestPublicEndpoint(c echo.Context) error {
	return response.Success(c, http.StatusOK, map[string]any{
		"message": "Public endpoint test successful",
		"status":  "public",
	})
}

// AdminPing answers only for administrators.
func (h *TestHandler) AdminPing(c echo.Context) error {
	return response.Success(c, http.StatusOK, map[string]any{
		"message": "pong",
	})
}
