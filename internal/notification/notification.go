package notification

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
)

// VerificationMail carries everything needed to build and send the
// email-verification link.
type VerificationMail struct {
	UserID int64
	Email  string
	Name   string
}

type PasswordResetMail struct {
	Email string
	Name  string
	Token string
}

// Mailer dispatches outbound mail. The auth engine treats a returned error
// as a command failure and decides per-flow whether it aborts the
// surrounding transaction.
type Mailer interface {
	SendVerificationMail(ctx context.Context, mail VerificationMail) error
	SendPasswordResetMail(ctx context.Context, mail PasswordResetMail) error
}

// EmailFingerprint is the deterministic hash embedded in verification
// links and compared on verify. Matches sha1(email) hex.
func EmailFingerprint(email string) string {
	sum := sha1.Sum([]byte(email))
	return hex.EncodeToString(sum[:])
}

// VerificationLink builds the front-end verification URL for a user.
func VerificationLink(frontendURL string, userID int64, email string) string {
	return fmt.Sprintf("%s/email/verify/%d/%s", frontendURL, userID, EmailFingerprint(email))
}

// ResetLink builds the front-end password reset URL embedding token and email.
func ResetLink(frontendURL, token, email string) string {
	return fmt.Sprintf("%s/reset-password?token=%s&email=%s", frontendURL, url.QueryEscape(token), url.QueryEscape(email))
}
