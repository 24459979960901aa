package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"github.com/ycchuang/org-management/internal"
	"github.com/ycchuang/org-management/internal/cache"
	userDatamodel "github.com/ycchuang/org-management/internal/core/datamodel/user"
	"github.com/ycchuang/org-management/internal/notification"
	"github.com/ycchuang/org-management/internal/resettoken"
)

const tokenTimeFormat = "2006-01-02 15:04:05"

// Service is the auth engine: registration, token lifecycle, password and
// verification flows. All session state lives in the injected TokenCache.
type Service struct {
	repo            RepositoryAPI
	tokens          *TokenCache
	tokenGenerator  TokenGeneratorAPI
	resetTokens     resettoken.Store
	mailer          notification.Mailer
	logger          *slog.Logger
	bcryptCost      int
	refreshTokenTTL time.Duration
	mailPolicy      internal.VerificationMailPolicy
}

type ServiceConfig struct {
	BCryptCost      int
	RefreshTokenTTL time.Duration
	MailPolicy      internal.VerificationMailPolicy
}

func NewService(
	repo RepositoryAPI,
	tokens *TokenCache,
	tokenGen TokenGeneratorAPI,
	resetTokens resettoken.Store,
	mailer notification.Mailer,
	logger *slog.Logger,
	cfg ServiceConfig,
) *Service {
	if cfg.RefreshTokenTTL == 0 {
		cfg.RefreshTokenTTL = 3 * time.Hour
	}
	if cfg.MailPolicy == "" {
		cfg.MailPolicy = internal.MailPolicyAtomic
	}
	return &Service{
		repo:            repo,
		tokens:          tokens,
		tokenGenerator:  tokenGen,
		resetTokens:     resetTokens,
		mailer:          mailer,
		logger:          logger,
		bcryptCost:      cfg.BCryptCost,
		refreshTokenTTL: cfg.RefreshTokenTTL,
		mailPolicy:      cfg.MailPolicy,
	}
}

// Register creates the user and dispatches the verification mail inside
// one transaction. Under the atomic mail policy a dispatch failure rolls
// the user row back, so no account can exist that never got its
// verification link.
func (s *Service) Register(ctx context.Context, dto RegisterDTO) (*userDatamodel.User, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	hash, err := HashPassword(dto.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &userDatamodel.User{
		Name:         dto.Name,
		Email:        dto.Email,
		PasswordHash: hash,
		Phone:        dto.Phone,
		EmployeeID:   dto.EmployeeID,
		IsActive:     true,
	}

	err = s.repo.Transaction(ctx, func(txRepo RepositoryAPI) error {
		if err := txRepo.Create(ctx, user); err != nil {
			return err
		}

		mail := notification.VerificationMail{UserID: user.ID, Email: user.Email, Name: user.Name}
		if err := s.mailer.SendVerificationMail(ctx, mail); err != nil {
			if s.mailPolicy == internal.MailPolicyAtomic {
				return internal.ErrNotificationFailed.WithCause(err)
			}
			s.logger.Warn("verification mail dispatch failed, committing anyway",
				"email", user.Email, "error", err)
		}
		return nil
	})
	if err != nil {
		if appErr, ok := internal.IsAppError(err); ok {
			return nil, appErr
		}
		s.logger.Error("registration failed", "email", dto.Email, "error", err)
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID, "email", user.Email)
	return user, nil
}

func (s *Service) Login(ctx context.Context, dto LoginDTO) (*TokenPair, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	user, err := s.repo.FindByEmail(ctx, dto.Email)
	if err != nil {
		return nil, internal.ErrInvalidCredentials
	}

	if err := VerifyPassword(user.PasswordHash, dto.Password); err != nil {
		return nil, internal.ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, internal.ErrAccountDisabled
	}

	if !user.IsVerified() {
		return nil, internal.ErrEmailNotVerified
	}

	return s.issueTokens(ctx, user)
}

// Logout evicts the current user's access-token slot. Calling it without
// an authenticated user is a no-op.
func (s *Service) Logout(ctx context.Context) error {
	authUser, ok := internal.UserFromContext(ctx)
	if !ok || authUser == nil {
		return nil
	}

	if err := s.tokens.InvalidateAccessToken(ctx, authUser.ID); err != nil {
		s.logger.Error("failed to invalidate access token", "user_id", authUser.ID, "error", err)
		return err
	}

	s.logger.Info("user logged out", "user_id", authUser.ID)
	return nil
}

// Refresh redeems a refresh token for a new token pair. The token is
// consumed before anything else so it cannot be replayed, even when the
// issuance below fails and the client retries.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	data, err := s.tokens.ConsumeRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, internal.ErrRefreshTokenInvalid
		}
		return nil, err
	}

	user, err := s.repo.FindByID(ctx, data.UserID)
	if err != nil {
		return nil, internal.ErrUserNotFound
	}

	return s.issueTokens(ctx, user)
}

func (s *Service) Me(ctx context.Context) (*userDatamodel.User, error) {
	authUser, ok := internal.UserFromContext(ctx)
	if !ok || authUser == nil {
		return nil, internal.ErrUserNotFound
	}

	user, err := s.repo.FindByID(ctx, authUser.ID)
	if err != nil {
		return nil, internal.ErrUserNotFound
	}
	return user, nil
}

// ForgotPassword issues a reset token and mails the reset link. Unknown
// emails surface UserNotFound; whether that existence leak is acceptable
// is a pending product decision.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return internal.ErrUserNotFound
	}

	if !user.IsVerified() {
		return internal.ErrEmailNotVerified
	}

	token, err := s.resetTokens.Create(ctx, user.Email)
	if err != nil {
		s.logger.Error("failed to create reset token", "email", email, "error", err)
		return internal.ErrForgotPasswordFailed.WithCause(err)
	}

	mail := notification.PasswordResetMail{Email: user.Email, Name: user.Name, Token: token}
	if err := s.mailer.SendPasswordResetMail(ctx, mail); err != nil {
		s.logger.Error("failed to send reset link", "email", email, "error", err)
		return internal.ErrForgotPasswordFailed.WithCause(err)
	}

	s.logger.Info("password reset link sent", "user_id", user.ID)
	return nil
}

// ResetPassword validates and consumes the reset token, updates the hash
// and invalidates the user's current access token, all in one
// transaction. Any validation failure rolls back and maps to
// ResetPasswordFailed.
func (s *Service) ResetPassword(ctx context.Context, dto ResetPasswordDTO) error {
	if err := dto.Validate(); err != nil {
		return err
	}

	user, err := s.repo.FindByEmail(ctx, dto.Email)
	if err != nil {
		return internal.ErrResetPasswordFailed
	}

	hash, err := HashPassword(dto.Password, s.bcryptCost)
	if err != nil {
		return err
	}

	err = s.repo.Transaction(ctx, func(txRepo RepositoryAPI) error {
		if err := s.resetTokens.Verify(ctx, dto.Email, dto.Token); err != nil {
			return internal.ErrResetPasswordFailed.WithCause(err)
		}
		if err := s.resetTokens.Consume(ctx, dto.Email); err != nil {
			return err
		}
		return txRepo.UpdatePassword(ctx, user.ID, hash)
	})
	if err != nil {
		if appErr, ok := internal.IsAppError(err); ok {
			return appErr
		}
		s.logger.Error("password reset failed", "email", dto.Email, "error", err)
		return internal.ErrResetPasswordFailed.WithCause(err)
	}

	if err := s.tokens.InvalidateAccessToken(ctx, user.ID); err != nil {
		s.logger.Error("failed to invalidate access token after reset", "user_id", user.ID, "error", err)
	}

	s.logger.Info("password reset", "user_id", user.ID)
	return nil
}

// ChangePassword verifies the current password, stores the new hash and
// forces re-authentication by evicting the cached access token.
func (s *Service) ChangePassword(ctx context.Context, dto ChangePasswordDTO) error {
	if err := dto.Validate(); err != nil {
		return err
	}

	authUser, ok := internal.UserFromContext(ctx)
	if !ok || authUser == nil {
		return internal.ErrUserNotFound
	}

	user, err := s.repo.FindByID(ctx, authUser.ID)
	if err != nil {
		return internal.ErrUserNotFound
	}

	if err := VerifyPassword(user.PasswordHash, dto.CurrentPassword); err != nil {
		return internal.ErrCurrentPasswordWrong
	}

	hash, err := HashPassword(dto.NewPassword, s.bcryptCost)
	if err != nil {
		return err
	}

	if err := s.repo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}

	if err := s.tokens.InvalidateAccessToken(ctx, user.ID); err != nil {
		s.logger.Error("failed to invalidate access token after password change", "user_id", user.ID, "error", err)
	}

	s.logger.Info("password changed", "user_id", user.ID)
	return nil
}

// VerifyEmail marks the account verified when the presented hash matches
// the email fingerprint. Verifying an already-verified account succeeds
// silently and email_verified_at is never moved.
func (s *Service) VerifyEmail(ctx context.Context, userID int64, hash string) error {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return internal.ErrUserNotFound
	}

	if user.IsVerified() {
		return nil
	}

	expected := notification.EmailFingerprint(user.Email)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(hash)) != 1 {
		return internal.ErrInvalidVerificationLink
	}

	if err := s.repo.MarkEmailVerified(ctx, user.ID, time.Now()); err != nil {
		return err
	}

	s.logger.Info("email verified", "user_id", user.ID)
	return nil
}

func (s *Service) ResendVerificationEmail(ctx context.Context, email string) error {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return internal.ErrUserNotFound
	}

	if user.IsVerified() {
		return internal.ErrEmailAlreadyVerified
	}

	mail := notification.VerificationMail{UserID: user.ID, Email: user.Email, Name: user.Name}
	if err := s.mailer.SendVerificationMail(ctx, mail); err != nil {
		s.logger.Error("failed to resend verification mail", "email", email, "error", err)
		return internal.ErrNotificationFailed.WithCause(err)
	}

	return nil
}

// ValidateAccessToken verifies the signature and then requires the token
// to be the user's current cached one. A signed token that is not in the
// slot has been revoked by a later login, logout or password change.
func (s *Service) ValidateAccessToken(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := s.tokenGenerator.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	current, err := s.tokens.CurrentAccessToken(ctx, claims.UserID)
	if err != nil || current != tokenString {
		return nil, internal.ErrInvalidToken
	}

	return claims, nil
}

func (s *Service) GetUserWithPermissions(ctx context.Context, userID int64) (*internal.AuthUser, error) {
	return s.repo.GetUserWithPermissions(ctx, userID)
}

// issueTokens mints an access token and a fresh refresh token. The access
// slot overwrite makes the previous session's token invalid the moment
// this returns; concurrent logins race last-write-wins on purpose.
func (s *Service) issueTokens(ctx context.Context, user *userDatamodel.User) (*TokenPair, error) {
	accessToken, expiresAt, err := s.tokenGenerator.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.StoreAccessToken(ctx, user.ID, accessToken, time.Until(expiresAt)); err != nil {
		return nil, err
	}

	refreshToken, err := GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	refreshExpiresAt := time.Now().Add(s.refreshTokenTTL)
	if err := s.tokens.StoreRefreshToken(ctx, refreshToken, user.ID, refreshExpiresAt); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:           accessToken,
		RefreshToken:          refreshToken,
		ExpiresIn:             int64(time.Until(expiresAt).Round(time.Second).Seconds()),
		ExpiredAt:             expiresAt.Format(tokenTimeFormat),
		RefreshTokenExpiresAt: refreshExpiresAt.Format(tokenTimeFormat),
	}, nil
}
