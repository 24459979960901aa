package user

import (
	"context"
	"log/slog"

	"github.com/ycchuang/org-management/internal/auth"
	userDatamodel "github.com/ycchuang/org-management/internal/core/datamodel/user"
)

type ServiceAPI interface {
	List(ctx context.Context, params ListParams) ([]*userDatamodel.User, int64, error)
	Get(ctx context.Context, id int64) (*userDatamodel.User, error)
	Create(ctx context.Context, dto CreateUserDTO) (*userDatamodel.User, error)
	Update(ctx context.Context, id int64, dto UpdateUserDTO) (*userDatamodel.User, error)
	Delete(ctx context.Context, id int64) error
	SyncOrganizations(ctx context.Context, userID int64, orgIDs []string) ([]string, error)
}

type Service struct {
	repo       RepositoryAPI
	logger     *slog.Logger
	bcryptCost int
}

func NewService(repo RepositoryAPI, logger *slog.Logger, bcryptCost int) *Service {
	return &Service{
		repo:       repo,
		logger:     logger,
		bcryptCost: bcryptCost,
	}
}

func (s *Service) List(ctx context.Context, params ListParams) ([]*userDatamodel.User, int64, error) {
	params.Normalize()
	return s.repo.List(ctx, params)
}

func (s *Service) Get(ctx context.Context, id int64) (*userDatamodel.User, error) {
	return s.repo.FindByID(ctx, id)
}

// Create provisions an account directly. Admin-created users still start
// unverified and go through the same email verification flow as
// self-registration.
func (s *Service) Create(ctx context.Context, dto CreateUserDTO) (*userDatamodel.User, error) {
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	hash, err := auth.HashPassword(dto.Password, s.bcryptCost)
	if err != nil {
		s.logger.Error("failed to hash password", "error", err)
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
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user created", "user_id", user.ID, "email", user.Email)
	return user, nil
}

func (s *Service) Update(ctx context.Context, id int64, dto UpdateUserDTO) (*userDatamodel.User, error) {
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if dto.Name != nil {
		user.Name = *dto.Name
	}
	if dto.Phone != nil {
		user.Phone = dto.Phone
	}
	if dto.EmployeeID != nil {
		user.EmployeeID = dto.EmployeeID
	}
	if dto.IsActive != nil {
		user.IsActive = *dto.IsActive
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", "user_id", id)
	return nil
}

// SyncOrganizations replaces the user's whole membership set. PATCH
// semantics are full sync, not merge: ids absent from the request are
// removed.
func (s *Service) SyncOrganizations(ctx context.Context, userID int64, orgIDs []string) ([]string, error) {
	if _, err := s.repo.FindByID(ctx, userID); err != nil {
		return nil, err
	}

	if err := s.repo.ReplaceOrganizations(ctx, userID, dedupe(orgIDs)); err != nil {
		s.logger.Error("failed to sync organizations", "user_id", userID, "error", err)
		return nil, err
	}

	return s.repo.OrganizationIDs(ctx, userID)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
