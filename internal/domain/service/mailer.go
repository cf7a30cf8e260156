package service

import "context"

// Mail is a plain-text message.
type Mail struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers outbound mail.
type Mailer interface {
	Send(ctx context.Context, mail *Mail) error
}
