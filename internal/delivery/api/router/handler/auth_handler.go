// Package handler contains the HTTP handlers for the application.
package handler

import (
	"net/http"

	"authsvc/config"
	"authsvc/internal/delivery/api/response"
	domainerrors "authsvc/internal/domain/errors"
	"authsvc/internal/errors"
	"authsvc/internal/usecase"

	"github.com/labstack/echo/v4"
)

// AuthHandler serves sign-in, session and OAuth endpoints.
type AuthHandler struct {
	uc      usecase.AuthUsecase
	cookies *cookieJar
}

// NewAuthHandler is the constructor for AuthHandler, injected by Fx.
func NewAuthHandler(uc usecase.AuthUsecase, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		uc:      uc,
		cookies: newCookieJar(cfg),
	}
}

// Login handles POST /login.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	output, err := h.uc.Login(c.Request().Context(), &usecase.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return h.signedIn(c, http.StatusOK, output)
}

// Register handles POST /register.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	output, err := h.uc.Register(c.Request().Context(), &usecase.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return h.signedIn(c, http.StatusCreated, output)
}

// RefreshToken handles POST /refresh-token. The refresh token is only accepted from its cookie.
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	req := c.Request()
	if req.ContentLength != 0 || req.URL.RawQuery != "" {
		return domainerrors.ErrBadPayload.WithDetails("refresh token must be sent in its cookie only")
	}

	cookie, err := c.Cookie(h.cookies.refreshName)
	if err != nil || cookie.Value == "" {
		return domainerrors.ErrUnauthorized
	}

	output, err := h.uc.RefreshTokens(req.Context(), cookie.Value)
	if err != nil {
		return errors.WithStack(err)
	}

	c.SetCookie(h.cookies.refresh(output.RefreshToken))

	return response.Success(c, http.StatusOK, &AccessTokenResponse{AccessToken: output.AccessToken})
}

// Logout handles POST /logout. It always clears the cookie.
func (h *AuthHandler) Logout(c echo.Context) error {
	if cookie, err := c.Cookie(h.cookies.refreshName); err == nil && cookie.Value != "" {
		if err := h.uc.Logout(c.Request().Context(), cookie.Value); err != nil {
			return errors.WithStack(err)
		}
	}

	c.SetCookie(h.cookies.clearRefresh())

	return response.OK(c)
}

// Connect handles GET /connect/:provider by redirecting the browser to the provider.
func (h *AuthHandler) Connect(c echo.Context) error {
	output, err := h.uc.OAuthConnect(c.Request().Context(), c.Param("provider"))
	if err != nil {
		return errors.WithStack(err)
	}

	c.SetCookie(h.cookies.state(output.Nonce))

	return c.Redirect(http.StatusFound, output.RedirectURL)
}

// Callback handles GET /callback/:provider, the provider's redirect back to the service.
func (h *AuthHandler) Callback(c echo.Context) error {
	input := &usecase.OAuthCallbackInput{
		Provider:      c.Param("provider"),
		Code:          c.QueryParam("code"),
		State:         c.QueryParam("state"),
		ProviderError: c.QueryParam("error"),
	}
	if cookie, err := c.Cookie(h.cookies.stateName); err == nil {
		input.StateCookie = cookie.Value
	}

	// The nonce is single use whatever the outcome.
	c.SetCookie(h.cookies.clearState())

	output, err := h.uc.OAuthCallback(c.Request().Context(), input)
	if err != nil {
		return errors.WithStack(err)
	}

	return h.signedIn(c, http.StatusOK, output)
}

func (h *AuthHandler) signedIn(c echo.Context, status int, output *usecase.AuthOutput) error {
	c.SetCookie(h.cookies.refresh(output.RefreshToken))

	return response.Success(c, status, &AuthResponse{
		AccessToken: output.AccessToken,
		User:        newUserResponse(output.User),
	})
}

// bindAndValidate decodes the JSON body into req and runs the registered validator.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return domainerrors.ErrBadPayload.WithDetails("malformed request body")
	}
	if err := c.Validate(req); err != nil {
		return errors.WithStack(err)
	}

	return nil
}
