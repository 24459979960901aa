package resettoken

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"
)

var (
	ErrTokenInvalid = errors.New("resettoken: token invalid or expired")
)

// Store issues, verifies and consumes password reset tokens. Only the
// sha256 of a token is persisted; the plaintext goes out once in the reset
// mail and is never stored.
type Store interface {
	Create(ctx context.Context, email string) (token string, err error)
	Verify(ctx context.Context, email, token string) error
	Consume(ctx context.Context, email string) error
}

// HashToken returns the hex sha256 digest persisted for a reset token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// HashEquals compares two hex digests in constant time.
func HashEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// NewToken generates a 64-char hex token from 32 random bytes.
func NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Record is the persistence model for password_reset_tokens. One row per
// email; re-requesting replaces the previous token.
type Record struct {
	Email     string    `gorm:"primaryKey"`
	TokenHash string    `gorm:"column:token_hash;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null"`
}

func (Record) TableName() string {
	return "password_reset_tokens"
}
