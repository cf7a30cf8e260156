package handler

import (
	"authsvc/internal/delivery/api/middleware"
	"authsvc/internal/delivery/api/response"
	domainerrors "authsvc/internal/domain/errors"
	"authsvc/internal/errors"
	"authsvc/internal/usecase"

	"github.com/labstack/echo/v4"
)

// VerificationHandler serves email confirmation and password reset.
type VerificationHandler struct {
	uc usecase.VerificationUsecase
}

func NewVerificationHandler(uc usecase.VerificationUsecase) *VerificationHandler {
	return &VerificationHandler{uc: uc}
}

// VerifyEmail handles POST /verify-email/:code for the authenticated user.
func (h *VerificationHandler) VerifyEmail(c echo.Context) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return domainerrors.ErrUnauthorized
	}

	if err := h.uc.VerifyEmail(c.Request().Context(), userID, c.Param("code")); err != nil {
		return errors.WithStack(err)
	}

	return response.OK(c)
}

// ResendVerifyEmail handles POST /resend-verify-email.
func (h *VerificationHandler) ResendVerifyEmail(c echo.Context) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return domainerrors.ErrUnauthorized
	}

	if err := h.uc.ResendVerification(c.Request().Context(), userID); err != nil {
		return errors.WithStack(err)
	}

	return response.OK(c)
}

// ForgotPassword handles POST /reset-password. The answer does not reveal whether the email exists.
func (h *VerificationHandler) ForgotPassword(c echo.Context) error {
	var req forgotPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.uc.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		return errors.WithStack(err)
	}

	return response.OK(c)
}

// ResetPassword handles POST /reset-password/:token.
func (h *VerificationHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.uc.ResetPassword(c.Request().Context(), c.Param("token"), req.Password); err != nil {
		return errors.WithStack(err)
	}

	return response.OK(c)
}
