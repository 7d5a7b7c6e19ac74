package auth

import (
	"context"
	"fmt"
	"strings"
)

const (
	MailTemplateConfirm     = "auth/email/confirm"
	MailTemplateResetPass   = "auth/email/reset_password"
	MailTemplateChangeEmail = "auth/email/change_email"
)

// MailMessage is a templated notification. Rendering is the mailer's job,
// Data carries the values the template needs, including the token.
type MailMessage struct {
	To       string
	Subject  string
	Template string
	Data     map[string]any
}

// Mailer delivers account notifications
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

// MailerFunc adapts a function into a Mailer
type MailerFunc func(ctx context.Context, msg MailMessage) error

func (f MailerFunc) Send(ctx context.Context, msg MailMessage) error {
	if f == nil {
		return nil
	}
	return f(ctx, msg)
}

// LogMailer writes notifications to a logger instead of sending them.
// Useful in development where the link has to be copied by hand.
type LogMailer struct {
	logger  Logger
	BaseURL string
}

var _ Mailer = (*LogMailer)(nil)

func NewLogMailer(baseURL string) *LogMailer {
	return &LogMailer{
		logger:  defLogger{},
		BaseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (m *LogMailer) WithLogger(l Logger) *LogMailer {
	m.logger = normalizeLogger(l)
	return m
}

func (m *LogMailer) Send(ctx context.Context, msg MailMessage) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	m.logger.Info("====== SENDING EMAIL NOTIFICATION =======")
	m.logger.Info("to: %s", msg.To)
	m.logger.Info("subject: %s", msg.Subject)
	if link := m.link(msg); link != "" {
		m.logger.Info("link: %s", link)
	}
	return nil
}

func (m *LogMailer) link(msg MailMessage) string {
	token, _ := msg.Data["token"].(string)
	if token == "" {
		return ""
	}

	switch msg.Template {
	case MailTemplateConfirm:
		return fmt.Sprintf("%s/auth/confirm/%s", m.BaseURL, token)
	case MailTemplateResetPass:
		return fmt.Sprintf("%s/auth/reset/%s", m.BaseURL, token)
	case MailTemplateChangeEmail:
		return fmt.Sprintf("%s/auth/change-email/%s", m.BaseURL, token)
	default:
		return ""
	}
}

func normalizeMailer(m Mailer) Mailer {
	if m == nil {
		return NewLogMailer("")
	}
	return m
}
