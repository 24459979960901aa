package notification

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/ycchuang/org-management/internal"
)

// SMTPMailer sends plain-text mail through a configured SMTP relay.
type SMTPMailer struct {
	cfg         internal.MailConfig
	frontendURL string
	logger      *slog.Logger
}

func NewSMTPMailer(cfg internal.MailConfig, frontendURL string, logger *slog.Logger) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, frontendURL: frontendURL, logger: logger}
}

func (m *SMTPMailer) SendVerificationMail(ctx context.Context, mail VerificationMail) error {
	link := VerificationLink(m.frontendURL, mail.UserID, mail.Email)
	body := fmt.Sprintf("Hi %s,\n\nPlease verify your email address by opening the link below:\n\n%s\n", mail.Name, link)
	return m.send(mail.Email, "Verify your email address", body)
}

func (m *SMTPMailer) SendPasswordResetMail(ctx context.Context, mail PasswordResetMail) error {
	link := ResetLink(m.frontendURL, mail.Token, mail.Email)
	body := fmt.Sprintf("Hi %s,\n\nYou requested a password reset. Open the link below to choose a new password:\n\n%s\n\nIf you did not request this, you can ignore this mail.\n", mail.Name, link)
	return m.send(mail.Email, "Reset your password", body)
}

func (m *SMTPMailer) send(to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	msg := strings.Join([]string{
		fmt.Sprintf("From: %s", m.cfg.From),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		"",
		body,
	}, "\r\n")

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(msg)); err != nil {
		m.logger.Error("smtp send failed", "to", to, "subject", subject, "error", err)
		return err
	}

	m.logger.Info("mail sent", "to", to, "subject", subject)
	return nil
}
