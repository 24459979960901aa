package authorization

import (
	"context"
	"log/slog"

	"github.com/ycchuang/org-management/internal/core/datamodel/rbac"
)

type ServiceAPI interface {
	ListRoles(ctx context.Context) ([]rbac.Role, error)
	GetRole(ctx context.Context, id int64) (*rbac.Role, error)
	CreateRole(ctx context.Context, dto CreateRoleDTO) (*rbac.Role, error)
	UpdateRole(ctx context.Context, id int64, dto UpdateRoleDTO) (*rbac.Role, error)
	DeleteRole(ctx context.Context, id int64) error
	ListPermissions(ctx context.Context) ([]rbac.Permission, error)
	AssignRolesToUser(ctx context.Context, userID int64, roleIDs []int64) ([]rbac.Role, error)
	AssignPermissionsToRole(ctx context.Context, roleID int64, permissionIDs []int64) (*rbac.Role, error)
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) ListRoles(ctx context.Context) ([]rbac.Role, error) {
	return s.repo.ListRoles(ctx)
}

func (s *Service) GetRole(ctx context.Context, id int64) (*rbac.Role, error) {
	return s.repo.FindRoleByID(ctx, id)
}

func (s *Service) CreateRole(ctx context.Context, dto CreateRoleDTO) (*rbac.Role, error) {
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	role := &rbac.Role{
		Name:        dto.Name,
		Description: dto.Description,
	}
	if err := s.repo.CreateRole(ctx, role); err != nil {
		return nil, err
	}

	s.logger.Info("role created", "role_id", role.ID, "name", role.Name)
	return role, nil
}

func (s *Service) UpdateRole(ctx context.Context, id int64, dto UpdateRoleDTO) (*rbac.Role, error) {
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	role, err := s.repo.FindRoleByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if dto.Name != nil {
		role.Name = *dto.Name
	}
	if dto.Description != nil {
		role.Description = *dto.Description
	}

	if err := s.repo.UpdateRole(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	if _, err := s.repo.FindRoleByID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.logger.Info("role deleted", "role_id", id)
	return nil
}

func (s *Service) ListPermissions(ctx context.Context) ([]rbac.Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// AssignRolesToUser replaces the user's role set wholesale and returns
// the resulting assignments.
func (s *Service) AssignRolesToUser(ctx context.Context, userID int64, roleIDs []int64) ([]rbac.Role, error) {
	if err := s.repo.ReplaceUserRoles(ctx, userID, dedupe(roleIDs)); err != nil {
		s.logger.Error("failed to assign roles", "user_id", userID, "error", err)
		return nil, err
	}
	return s.repo.RolesForUser(ctx, userID)
}

func (s *Service) AssignPermissionsToRole(ctx context.Context, roleID int64, permissionIDs []int64) (*rbac.Role, error) {
	if err := s.repo.ReplaceRolePermissions(ctx, roleID, dedupe(permissionIDs)); err != nil {
		s.logger.Error("failed to assign permissions", "role_id", roleID, "error", err)
		return nil, err
	}
	return s.repo.FindRoleByID(ctx, roleID)
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
