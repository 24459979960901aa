package notification

import (
	"context"
	"log/slog"
)

// DevMailer logs mail instead of dialing SMTP. Used for local runs and as
// the default when mail.dev_mode is on.
type DevMailer struct {
	frontendURL string
	logger      *slog.Logger
}

func NewDevMailer(frontendURL string, logger *slog.Logger) *DevMailer {
	return &DevMailer{frontendURL: frontendURL, logger: logger}
}

func (m *DevMailer) SendVerificationMail(ctx context.Context, mail VerificationMail) error {
	m.logger.InfoContext(ctx, "verification mail issued",
		"user_id", mail.UserID,
		"email", mail.Email,
		"link", VerificationLink(m.frontendURL, mail.UserID, mail.Email),
	)
	return nil
}

func (m *DevMailer) SendPasswordResetMail(ctx context.Context, mail PasswordResetMail) error {
	m.logger.InfoContext(ctx, "password reset mail issued",
		"email", mail.Email,
		"link", ResetLink(m.frontendURL, mail.Token, mail.Email),
	)
	return nil
}
