package impl

import (
	"fmt"
	"strings"
	"time"

	"authsvc/internal/domain/entity"
	"authsvc/internal/domain/service"
)

func verificationMail(user *entity.User, code string, ttl time.Duration) *service.Mail {
	return &service.Mail{
		To:      user.EmailAddress(),
		Subject: "Verify your email address",
		Body: fmt.Sprintf(
			"Hi %s,\n\nYour verification code is %s.\nIt expires in %s.\n\nIf you did not create an account, you can ignore this message.\n",
			displayName(user), code, humanDuration(ttl),
		),
	}
}

func passwordResetMail(user *entity.User, link string, ttl time.Duration) *service.Mail {
	return &service.Mail{
		To:      user.EmailAddress(),
		Subject: "Reset your password",
		Body: fmt.Sprintf(
			"Hi %s,\n\nFollow this link to choose a new password:\n%s\n\nThe link expires in %s. If you did not ask for a reset, you can ignore this message.\n",
			displayName(user), link, humanDuration(ttl),
		),
	}
}

// resetLink appends the token as the last path segment of base. An empty base yields the bare token.
func resetLink(base, token string) string {
	base = strings.TrimRight(base, "/")
	if base == "" {
		return token
	}

	return base + "/" + token
}

func displayName(user *entity.User) string {
	if user.Name != "" {
		return user.Name
	}

	return "there"
}

func humanDuration(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		return plural(int(d/time.Hour), "hour")
	}

	return plural(int(d.Round(time.Minute)/time.Minute), "minute")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}

	return fmt.Sprintf("%d %ss", n, unit)
}
