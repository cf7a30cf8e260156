package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"authsvc/config"
	"authsvc/internal/delivery/api/response"
	domainerrors "authsvc/internal/domain/errors"
	"authsvc/internal/errors"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newErrorEcho(env string, handlerErr error) *echo.Echo {
	cfg := &config.Config{}
	cfg.Env.Env = env

	e := echo.New()
	e.HTTPErrorHandler = NewErrorMiddleware(slog.New(slog.NewTextHandler(io.Discard, nil)), cfg).HandleHTTPError
	e.GET("/fail", func(c echo.Context) error { return handlerErr })

	return e
}

func serveError(t *testing.T, e *echo.Echo, path string) (int, response.ErrorResponse) {
	t.Helper()

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body response.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)

	return rec.Code, body
}

func TestErrorMiddleware_AppErrors(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:        "domain error keeps its message",
			env:         "production",
			err:         errors.WithStack(domainerrors.ErrInvalidCredentials),
			wantStatus:  http.StatusUnauthorized,
			wantCode:    "INVALID_CREDENTIALS",
			wantMessage: "Invalid credentials",
		},
		{
			name:        "duplicate details hidden outside development",
			env:         "production",
			err:         domainerrors.ErrDuplicate.WithDetails("users_email_key"),
			wantStatus:  http.StatusConflict,
			wantCode:    "DUPLICATE_ERROR",
			wantMessage: "Record already exists",
		},
		{
			name:        "details surface in development",
			env:         "development",
			err:         domainerrors.ErrDuplicate.WithDetails("users_email_key"),
			wantStatus:  http.StatusConflict,
			wantCode:    "DUPLICATE_ERROR",
			wantMessage: "users_email_key",
		},
		{
			name:        "database error is generic outside development",
			env:         "production",
			err:         domainerrors.NewDatabaseExecuteError(errors.New("connection refused"), "find user"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    "INTERNAL_ERROR",
			wantMessage: domainerrors.GenericMessage,
		},
		{
			name:        "unknown error is generic outside development",
			env:         "production",
			err:         errors.New("boom"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    "INTERNAL_ERROR",
			wantMessage: domainerrors.GenericMessage,
		},
		{
			name:        "unknown error is surfaced in development",
			env:         "development",
			err:         errors.New("boom"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    "INTERNAL_ERROR",
			wantMessage: "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := serveError(t, newErrorEcho(tt.env, tt.err), "/fail")

			assert.Equal(t, tt.wantStatus, status)
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantCode, body.Error.Code)
			assert.Equal(t, tt.wantMessage, body.Error.Message)
			assert.NotNil(t, body.Meta)
		})
	}
}

func TestErrorMiddleware_EchoErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		path       string
		wantStatus int
		wantCode   string
	}{
		{name: "unknown route", path: "/missing", wantStatus: http.StatusNotFound, wantCode: "NOT_FOUND"},
		{name: "body too large", err: echo.ErrStatusRequestEntityTooLarge, path: "/fail", wantStatus: http.StatusBadRequest, wantCode: "BAD_PAYLOAD"},
		{name: "unsupported media type", err: echo.ErrUnsupportedMediaType, path: "/fail", wantStatus: http.StatusBadRequest, wantCode: "BAD_PAYLOAD"},
		{name: "unauthorized", err: echo.ErrUnauthorized, path: "/fail", wantStatus: http.StatusUnauthorized, wantCode: "UNAUTHORIZED"},
		{name: "forbidden", err: echo.ErrForbidden, path: "/fail", wantStatus: http.StatusForbidden, wantCode: "FORBIDDEN"},
		{name: "teapot", err: echo.NewHTTPError(http.StatusTeapot, "short and stout"), path: "/fail", wantStatus: http.StatusTeapot, wantCode: "HTTP_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := serveError(t, newErrorEcho("production", tt.err), tt.path)

			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, body.Error.Code)
		})
	}
}
