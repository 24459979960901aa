package postgres

import (
	"context"
	"time"

	"github.com/ycchuang/org-management/internal/resettoken"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store struct {
	db  *gorm.DB
	ttl time.Duration
}

func NewStore(db *gorm.DB, ttl time.Duration) *Store {
	return &Store{db: db, ttl: ttl}
}

// WithTx returns a store bound to the given transaction handle.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{db: tx, ttl: s.ttl}
}

func (s *Store) Create(ctx context.Context, email string) (string, error) {
	token, err := resettoken.NewToken()
	if err != nil {
		return "", err
	}

	record := resettoken.Record{
		Email:     email,
		TokenHash: resettoken.HashToken(token),
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(s.ttl),
	}

	// upsert: a new request replaces the outstanding token for this email
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"token_hash", "created_at", "expires_at"}),
	}).Create(&record).Error
	if err != nil {
		return "", err
	}

	return token, nil
}

func (s *Store) Verify(ctx context.Context, email, token string) error {
	var record resettoken.Record
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return resettoken.ErrTokenInvalid
		}
		return err
	}

	if time.Now().After(record.ExpiresAt) {
		return resettoken.ErrTokenInvalid
	}
	if !resettoken.HashEquals(record.TokenHash, resettoken.HashToken(token)) {
		return resettoken.ErrTokenInvalid
	}
	return nil
}

func (s *Store) Consume(ctx context.Context, email string) error {
	return s.db.WithContext(ctx).Where("email = ?", email).Delete(&resettoken.Record{}).Error
}
