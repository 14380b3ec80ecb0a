// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SimpleAuth Contributors

// Package mail delivers the outbound messages simpleauth sends, which today
// is exactly one: the password reset link.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/samber/oops"
)

// Mailer sends a password reset link to a recipient. Implementations must be
// safe for concurrent use.
type Mailer interface {
	SendPasswordReset(ctx context.Context, recipient, resetURL string) error
}

// SMTPConfig configures the SMTP mailer.
type SMTPConfig struct {
	Addr     string // host:port
	From     string
	Username string
	Password string // empty disables authentication
}

// SMTPMailer sends reset mail through a plain SMTP relay.
type SMTPMailer struct {
	cfg    SMTPConfig
	logger *slog.Logger
}

// NewSMTPMailer creates an SMTP mailer.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	return NewSMTPMailerWithLogger(cfg, slog.New(slog.DiscardHandler))
}

// NewSMTPMailerWithLogger creates an SMTP mailer with a custom logger.
func NewSMTPMailerWithLogger(cfg SMTPConfig, logger *slog.Logger) (*SMTPMailer, error) {
	if cfg.Addr == "" {
		return nil, oops.Code("MAIL_INVALID_CONFIG").Errorf("smtp address is required")
	}
	if cfg.From == "" {
		return nil, oops.Code("MAIL_INVALID_CONFIG").Errorf("from address is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SMTPMailer{cfg: cfg, logger: logger}, nil
}

// SendPasswordReset sends the reset link. The message body names the
// expiry window so recipients know stale links are expected to fail.
func (m *SMTPMailer) SendPasswordReset(ctx context.Context, recipient, resetURL string) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("MAIL_SEND_FAILED").Wrap(err)
	}

	msg := buildResetMessage(m.cfg.From, recipient, resetURL)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		host, _, _ := strings.Cut(m.cfg.Addr, ":")
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, host)
	}

	if err := smtp.SendMail(m.cfg.Addr, auth, m.cfg.From, []string{recipient}, msg); err != nil {
		return oops.Code("MAIL_SEND_FAILED").
			With("addr", m.cfg.Addr).
			Wrap(err)
	}

	m.logger.Debug("password reset mail sent", "recipient", recipient)
	return nil
}

func buildResetMessage(from, to, resetURL string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	b.WriteString("Subject: Reset your password\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString("A password reset was requested for your account.\r\n\r\n")
	fmt.Fprintf(&b, "Reset your password here: %s\r\n\r\n", resetURL)
	b.WriteString("The link expires in 15 minutes. If you did not request this, you can ignore this message.\r\n")
	return []byte(b.String())
}

// NopMailer discards all mail. Useful in tests and local development where
// the reset link is read from the logs instead.
type NopMailer struct {
	logger *slog.Logger
}

// NewNopMailer creates a mailer that logs instead of sending.
func NewNopMailer(logger *slog.Logger) *NopMailer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &NopMailer{logger: logger}
}

// SendPasswordReset logs the reset link and drops the message.
func (m *NopMailer) SendPasswordReset(_ context.Context, recipient, resetURL string) error {
	m.logger.Info("password reset mail suppressed", "recipient", recipient, "reset_url", resetURL)
	return nil
}

// Compile-time interface checks.
var (
	_ Mailer = (*SMTPMailer)(nil)
	_ Mailer = (*NopMailer)(nil)
)
