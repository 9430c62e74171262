// Package email delivers OTP messages over SMTP, with a logging fallback
// for development environments.
package email

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"

	"github.com/vyapar-labs/b2b-platform/internal/core/port"
	"github.com/vyapar-labs/b2b-platform/internal/infra/config"
	"github.com/vyapar-labs/b2b-platform/internal/infra/logger"
)

// SMTPSender delivers OTP messages through a gomail dialer.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
	logger *zap.Logger
}

var _ port.EmailSender = (*SMTPSender)(nil)

// NewSMTPSender constructs the sender from config.
func NewSMTPSender(cfg config.SMTPSettings, log *zap.Logger) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		logger: log,
	}
}

// SendOTP delivers the verification code. The dial honors the context
// deadline by running in a goroutine; gomail itself has no context support.
func (s *SMTPSender) SendOTP(ctx context.Context, to, code string, expiresAt time.Time) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Your verification code")
	msg.SetBody("text/plain", fmt.Sprintf(
		"Your verification code is %s.\n\nIt expires at %s. If you did not request this code, you can ignore this email.\n",
		code,
		expiresAt.UTC().Format(time.RFC1123),
	))

	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send otp email: %w", err)
		}
		s.logger.Debug("otp email sent", zap.String("to", logger.MaskEmail(to)))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send otp email: %w", ctx.Err())
	}
}

// LogSender writes the code to the log instead of sending mail. Used in
// development when no SMTP host is configured.
type LogSender struct {
	logger *zap.Logger
}

var _ port.EmailSender = (*LogSender)(nil)

// NewLogSender constructs the logging sender.
func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{logger: log}
}

// SendOTP logs the delivery instead of performing it.
func (s *LogSender) SendOTP(_ context.Context, to, code string, expiresAt time.Time) error {
	s.logger.Info("otp delivery (log sender)",
		zap.String("to", logger.MaskEmail(to)),
		zap.String("code", code),
		zap.Time("expires_at", expiresAt),
	)
	return nil
}
