// Package mail delivers the verification and password-reset messages.
package mail

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"authsvc/config"
	deliverycontext "authsvc/internal/delivery/context"
	"authsvc/internal/domain/service"

	"go.uber.org/fx"
)

// Params defines the required parameters
type Params struct {
	fx.In
	fx.Lifecycle

	Config *config.Config
	Logger *slog.Logger
}

// New builds the configured driver behind an asynchronous dispatcher.
func New(params Params) service.Mailer {
	var driver service.Mailer
	switch params.Config.Mail.Driver {
	case config.MailDriverSMTP:
		driver = NewSMTPMailer(params.Config.Mail)
	default:
		driver = NewLogMailer(params.Logger, params.Config.IsDevelopment())
	}

	async := NewAsyncMailer(driver, params.Config.Mail.SendTimeout, params.Logger)
	params.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return async.Wait(ctx)
		},
	})

	return async
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	logger      *slog.Logger
	includeBody bool
}

// NewLogMailer only logs message bodies, which carry codes and reset links, when includeBody is set.
func NewLogMailer(logger *slog.Logger, includeBody bool) *LogMailer {
	return &LogMailer{logger: logger, includeBody: includeBody}
}

func (m *LogMailer) Send(ctx context.Context, mail *service.Mail) error {
	attrs := []slog.Attr{
		slog.String("to", mail.To),
		slog.String("subject", mail.Subject),
	}
	if m.includeBody {
		attrs = append(attrs, slog.String("body", mail.Body))
	}
	m.logger.LogAttrs(ctx, slog.LevelInfo, "Mail sent to log", attrs...)

	return nil
}

// AsyncMailer hands each message to a goroutine so requests never wait on delivery.
// Failures are logged; the caller's cancellation does not abort a send.
type AsyncMailer struct {
	next    service.Mailer
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

func NewAsyncMailer(next service.Mailer, timeout time.Duration, logger *slog.Logger) *AsyncMailer {
	return &AsyncMailer{next: next, timeout: timeout, logger: logger}
}

func (m *AsyncMailer) Send(ctx context.Context, mail *service.Mail) error {
	sendCtx := context.WithoutCancel(ctx)
	logger := deliverycontext.GetLoggerOrDefault(ctx, m.logger)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ctx, cancel := context.WithTimeout(sendCtx, m.timeout)
		defer cancel()

		if err := m.next.Send(ctx, mail); err != nil {
			logger.ErrorContext(ctx, "Failed to send mail",
				slog.String("subject", mail.Subject),
				slog.Any("error", err),
			)
		}
	}()

	return nil
}

// Wait blocks until in-flight sends finish or ctx is done.
func (m *AsyncMailer) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
