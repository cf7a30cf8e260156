// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"log/slog"
	"strings"

	deliverycontext "authsvc/internal/delivery/context"
	"authsvc/internal/domain/entity"
	"authsvc/internal/domain/service"
	"authsvc/internal/errors"
	"authsvc/internal/usecase"
)

// normalizeEmail is applied to every address before lookup or storage so that
// the unique index on users.email is case-insensitive in practice.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// requestLogger returns a request-scoped logger if available, otherwise the fallback.
func requestLogger(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, fallback)
}

func record(recorder service.AuthEventRecorder, event service.AuthEvent, err error) {
	if recorder == nil {
		return
	}
	recorder.Record(event, err == nil)
}

// issueSession mints the access and refresh pair handed out by every sign-in flow.
func issueSession(codec service.TokenCodec, user *entity.User) (*usecase.AuthOutput, error) {
	accessToken, err := codec.IssueAccessToken(user)
	if err != nil {
		return nil, errors.Wrap(err, "failed to issue access token")
	}

	refreshToken, err := codec.IssueRefreshToken(user)
	if err != nil {
		return nil, errors.Wrap(err, "failed to issue refresh token")
	}

	return &usecase.AuthOutput{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}, nil
}
