package handler

import (
	"net/http"

	"authsvc/internal/delivery/api/middleware"
	"authsvc/internal/delivery/api/response"
	domainerrors "authsvc/internal/domain/errors"
	"authsvc/internal/errors"
	"authsvc/internal/usecase"

	"github.com/labstack/echo/v4"
)

// ProfileHandler serves the authenticated user's own record.
type ProfileHandler struct {
	uc usecase.ProfileUsecase
}

func NewProfileHandler(uc usecase.ProfileUsecase) *ProfileHandler {
	return &ProfileHandler{uc: uc}
}

// GetMe handles GET /me.
func (h *ProfileHandler) GetMe(c echo.Context) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return domainerrors.ErrUnauthorized
	}

	user, err := h.uc.GetProfile(c.Request().Context(), userID)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, map[string]any{"user": newUserResponse(user)})
}

// UpdateMe handles PATCH /me.
func (h *ProfileHandler) UpdateMe(c echo.Context) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return domainerrors.ErrUnauthorized
	}

	var req updateProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if req.ProfileImage != nil && *req.ProfileImage != "" {
		if err := c.Validate(&profileImageRequest{ProfileImage: *req.ProfileImage}); err != nil {
			return errors.WithStack(err)
		}
	}

	user, err := h.uc.UpdateProfile(c.Request().Context(), userID, &usecase.UpdateProfileInput{
		Name:         req.Name,
		ProfileImage: req.ProfileImage,
		Password:     req.Password,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, map[string]any{"user": newUserResponse(user)})
}
