package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempmail/client/internal/config"
	"tempmail/client/internal/domain"
)

var validForm = ContactForm{
	Name:    "Alice",
	Email:   "alice+tag@example.com",
	Subject: "Hello",
	Message: "line one\nline two",
}

type capturedMail struct {
	addr string
	auth sasl.Client
	from string
	to   []string
	body string
}

func capture(out *capturedMail, err error) sendMailFunc {
	return func(addr string, a sasl.Client, from string, to []string, r io.Reader) error {
		data, _ := io.ReadAll(r)
		*out = capturedMail{addr: addr, auth: a, from: from, to: to, body: string(data)}
		return err
	}
}

func TestContactValidate(t *testing.T) {
	svc := NewContactService(config.SMTPConfig{}, nil)

	assert.NoError(t, svc.Validate(validForm))

	err := svc.Validate(ContactForm{Name: " ", Email: "not-an-email"})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"name", "email", "subject", "message"}, verr.Fields)
}

func TestContactSubmit(t *testing.T) {
	t.Run("未配置中继时只记录日志", func(t *testing.T) {
		svc := NewContactService(config.SMTPConfig{}, nil)
		called := false
		svc.send = func(string, sasl.Client, string, []string, io.Reader) error {
			called = true
			return nil
		}
		assert.False(t, svc.Enabled())
		require.NoError(t, svc.Submit(context.Background(), validForm))
		assert.False(t, called)
	})

	t.Run("通过中继发送", func(t *testing.T) {
		svc := NewContactService(config.SMTPConfig{
			Addr:     "smtp.example.com:587",
			Username: "relay@example.com",
			Password: "secret",
			To:       "support@example.com",
		}, nil)
		var got capturedMail
		svc.send = capture(&got, nil)

		require.NoError(t, svc.Submit(context.Background(), validForm))
		assert.Equal(t, "smtp.example.com:587", got.addr)
		assert.Equal(t, "relay@example.com", got.from)
		assert.Equal(t, []string{"support@example.com"}, got.to)
		assert.NotNil(t, got.auth)
		assert.Contains(t, got.body, "Reply-To: alice+tag@example.com\r\n")
		assert.Contains(t, got.body, "Subject: [Contact] Hello\r\n")
		assert.Contains(t, got.body, "line one\r\nline two\r\n")
	})

	t.Run("无用户名时不认证", func(t *testing.T) {
		svc := NewContactService(config.SMTPConfig{
			Addr: "localhost:25",
			From: "noreply@example.com",
			To:   "support@example.com",
		}, nil)
		var got capturedMail
		svc.send = capture(&got, nil)

		require.NoError(t, svc.Submit(context.Background(), validForm))
		assert.Nil(t, got.auth)
		assert.Equal(t, "noreply@example.com", got.from)
	})

	t.Run("发送失败", func(t *testing.T) {
		svc := NewContactService(config.SMTPConfig{Addr: "localhost:25", To: "support@example.com"}, nil)
		var got capturedMail
		svc.send = capture(&got, errors.New("connection refused"))

		err := svc.Submit(context.Background(), validForm)
		assert.ErrorIs(t, err, domain.ErrUnavailable)
	})

	t.Run("校验失败不发送", func(t *testing.T) {
		svc := NewContactService(config.SMTPConfig{Addr: "localhost:25", To: "support@example.com"}, nil)
		var got capturedMail
		svc.send = capture(&got, nil)

		err := svc.Submit(context.Background(), ContactForm{})
		assert.True(t, domain.IsValidation(err))
		assert.Empty(t, got.addr)
	})
}

func TestBuildContactMessage(t *testing.T) {
	form := validForm
	form.Subject = "Hi\r\nBcc: victim@example.com"
	form.Name = "Mallory\nX-Injected: 1"

	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	body := string(buildContactMessage("from@example.com", "to@example.com", form, now))

	headers, _, ok := strings.Cut(body, "\r\n\r\n")
	require.True(t, ok)
	assert.NotContains(t, headers, "\r\nBcc:")
	assert.NotContains(t, body, "\r\nX-Injected:")
	assert.Contains(t, headers, "Date: Sat, 01 Jun 2024 08:00:00 +0000")
	assert.Contains(t, headers, "Message-ID: <")

	t.Run("非 ASCII 主题编码", func(t *testing.T) {
		form := validForm
		form.Subject = "你好"
		body := string(buildContactMessage("a@example.com", "b@example.com", form, now))
		assert.Contains(t, body, "Subject: =?utf-8?q?")
	})
}
