// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SimpleAuth Contributors

package mail_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoshisuproject/simpleauth/internal/mail"
	"github.com/yoshisuproject/simpleauth/pkg/errutil"
)

func TestNewSMTPMailer_RequiresAddr(t *testing.T) {
	_, err := mail.NewSMTPMailer(mail.SMTPConfig{From: "noreply@example.com"})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MAIL_INVALID_CONFIG")
}

func TestNewSMTPMailer_RequiresFrom(t *testing.T) {
	_, err := mail.NewSMTPMailer(mail.SMTPConfig{Addr: "localhost:25"})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MAIL_INVALID_CONFIG")
}

func TestSMTPMailer_CanceledContext(t *testing.T) {
	m, err := mail.NewSMTPMailer(mail.SMTPConfig{Addr: "localhost:25", From: "noreply@example.com"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = m.SendPasswordReset(ctx, "user@example.com", "https://example.com/passwords/x:y/edit")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MAIL_SEND_FAILED")
}

func TestNopMailer_LogsLink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	m := mail.NewNopMailer(logger)
	err := m.SendPasswordReset(context.Background(), "user@example.com", "https://example.com/passwords/x:y/edit")
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "user@example.com")
	assert.Contains(t, buf.String(), "/passwords/x:y/edit")
}

func TestNopMailer_NilLogger(t *testing.T) {
	m := mail.NewNopMailer(nil)
	assert.NoError(t, m.SendPasswordReset(context.Background(), "user@example.com", "u"))
}
