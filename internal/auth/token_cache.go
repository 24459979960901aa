package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ycchuang/org-management/internal/cache"
)

const (
	accessTokenKeyPrefix  = "jwt_"
	refreshTokenKeyPrefix = "refresh_token:"
)

// RefreshTokenData is what a refresh-token cache entry resolves to.
type RefreshTokenData struct {
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenCache holds the current access token per user (key jwt_<id>) and
// the opaque refresh-token mapping (key refresh_token:<token>). A user has
// at most one valid access token: storing a new one overwrites the slot,
// and the auth middleware rejects any presented token that is not the
// cached one.
type TokenCache struct {
	store cache.Cache
}

func NewTokenCache(store cache.Cache) *TokenCache {
	return &TokenCache{store: store}
}

func accessTokenKey(userID int64) string {
	return fmt.Sprintf("%s%d", accessTokenKeyPrefix, userID)
}

func refreshTokenKey(token string) string {
	return refreshTokenKeyPrefix + token
}

func (t *TokenCache) CurrentAccessToken(ctx context.Context, userID int64) (string, error) {
	return t.store.Get(ctx, accessTokenKey(userID))
}

func (t *TokenCache) StoreAccessToken(ctx context.Context, userID int64, token string, ttl time.Duration) error {
	return t.store.Set(ctx, accessTokenKey(userID), token, ttl)
}

func (t *TokenCache) InvalidateAccessToken(ctx context.Context, userID int64) error {
	return t.store.Delete(ctx, accessTokenKey(userID))
}

func (t *TokenCache) StoreRefreshToken(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	payload, err := json.Marshal(RefreshTokenData{UserID: userID, ExpiresAt: expiresAt})
	if err != nil {
		return err
	}
	return t.store.Set(ctx, refreshTokenKey(token), string(payload), time.Until(expiresAt))
}

// ConsumeRefreshToken reads and deletes a refresh token in one step, so a
// given token can be redeemed at most once even when the caller fails
// after this point. Backends without an atomic read-and-delete leave a
// race window of one round trip between two concurrent redemptions.
func (t *TokenCache) ConsumeRefreshToken(ctx context.Context, token string) (*RefreshTokenData, error) {
	raw, err := t.store.GetDel(ctx, refreshTokenKey(token))
	if err != nil {
		return nil, err
	}

	var data RefreshTokenData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, err
	}

	if time.Now().After(data.ExpiresAt) {
		return nil, cache.ErrCacheMiss
	}

	return &data, nil
}
