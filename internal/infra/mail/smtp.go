package mail

import (
	"context"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"authsvc/config"
	"authsvc/internal/domain/service"
	"authsvc/internal/errors"
)

// SMTPMailer sends plain-text mail through an SMTP relay, upgrading with STARTTLS when offered.
type SMTPMailer struct {
	addr string
	host string
	from string
	auth smtp.Auth
}

func NewSMTPMailer(cfg *config.MailConfig) *SMTPMailer {
	m := &SMTPMailer{
		addr: net.JoinHostPort(cfg.SMTP.Host, strconv.Itoa(cfg.SMTP.Port)),
		host: cfg.SMTP.Host,
		from: cfg.From,
	}
	if cfg.SMTP.Username != "" {
		m.auth = smtp.PlainAuth("", cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.Host)
	}

	return m
}

// Send honours ctx through the connection deadline since net/smtp has no context support.
func (m *SMTPMailer) Send(ctx context.Context, mail *service.Mail) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- smtp.SendMail(m.addr, m.auth, m.from, []string{mail.To}, m.compose(mail))
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "failed to send mail via smtp")
		}

		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "smtp send aborted")
	}
}

func (m *SMTPMailer) compose(mail *service.Mail) []byte {
	var b strings.Builder
	b.WriteString("From: " + m.from + "\r\n")
	b.WriteString("To: " + mail.To + "\r\n")
	b.WriteString("Subject: " + mail.Subject + "\r\n")
	b.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(mail.Body, "\n", "\r\n"))

	return []byte(b.String())
}
