package middleware

import (
	"log/slog"
	"net/http"

	"authsvc/config"
	"authsvc/internal/delivery/api/response"
	deliverycontext "authsvc/internal/delivery/context"
	domainerrors "authsvc/internal/domain/errors"
	"authsvc/internal/errors"

	"github.com/labstack/echo/v4"
)

// ErrorMiddleware handles errors in the HTTP pipeline
type ErrorMiddleware struct {
	logger      *slog.Logger
	development bool
}

// NewErrorMiddleware creates a new error handling middleware
func NewErrorMiddleware(logger *slog.Logger, cfg *config.Config) *ErrorMiddleware {
	return &ErrorMiddleware{
		logger:      logger,
		development: cfg.IsDevelopment(),
	}
}

// HandleHTTPError handles errors as Echo's HTTPErrorHandler
func (m *ErrorMiddleware) HandleHTTPError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, code, message := m.translate(err)
	if status >= http.StatusInternalServerError {
		logger := deliverycontext.GetLoggerOrDefault(c.Request().Context(), m.logger)
		logger.Error("Request failed",
			slog.Any("error", err),
			slog.String("path", c.Request().URL.Path),
			slog.String("method", c.Request().Method),
		)
	}

	_ = response.Error(c, status, code, message)
}

func (m *ErrorMiddleware) translate(err error) (status int, code, message string) {
	if appErr, ok := errors.AsType[domainerrors.AppError](err); ok {
		return appErr.HTTPCode(), appErr.ErrorCode(), m.appErrorMessage(appErr)
	}

	if httpErr, ok := errors.AsType[*echo.HTTPError](err); ok {
		return translateHTTPError(httpErr)
	}

	message = domainerrors.GenericMessage
	if m.development {
		message = err.Error()
	}

	return http.StatusInternalServerError, domainerrors.ErrInternalError.ErrorCode(), message
}

// appErrorMessage hides internals outside development. Details such as the
// violated constraint of a duplicate error are only surfaced in development.
func (m *ErrorMiddleware) appErrorMessage(appErr domainerrors.AppError) string {
	if m.development {
		if details := appErr.Details(); details != "" {
			return details
		}

		return appErr.Message()
	}

	if appErr.HTTPCode() >= http.StatusInternalServerError {
		return domainerrors.GenericMessage
	}

	return appErr.Message()
}

// translateHTTPError maps errors raised by echo itself (routing, binding, body limit) onto the taxonomy.
func translateHTTPError(httpErr *echo.HTTPError) (status int, code, message string) {
	switch httpErr.Code {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return http.StatusBadRequest, domainerrors.ErrBadPayload.ErrorCode(), domainerrors.ErrBadPayload.Message()
	case http.StatusUnauthorized:
		return http.StatusUnauthorized, domainerrors.ErrUnauthorized.ErrorCode(), domainerrors.ErrUnauthorized.Message()
	case http.StatusForbidden:
		return http.StatusForbidden, domainerrors.ErrForbidden.ErrorCode(), domainerrors.ErrForbidden.Message()
	case http.StatusNotFound:
		return http.StatusNotFound, domainerrors.ErrNotFound.ErrorCode(), domainerrors.ErrNotFound.Message()
	case http.StatusMethodNotAllowed:
		return http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", http.StatusText(http.StatusMethodNotAllowed)
	}

	if httpErr.Code >= http.StatusInternalServerError {
		return httpErr.Code, domainerrors.ErrInternalError.ErrorCode(), domainerrors.GenericMessage
	}

	message := http.StatusText(httpErr.Code)
	if msg, ok := httpErr.Message.(string); ok && msg != "" {
		message = msg
	}

	return httpErr.Code, "HTTP_ERROR", message
}
