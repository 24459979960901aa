package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	internal "github.com/ycchuang/org-management/internal"
	"github.com/ycchuang/org-management/internal/core/datamodel/rbac"
)

// Repository implements authorization.RepositoryAPI using GORM.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ListRoles(ctx context.Context) ([]rbac.Role, error) {
	var roles []rbac.Role
	err := r.db.WithContext(ctx).
		Preload("Permissions").
		Order("name ASC").
		Find(&roles).Error
	return roles, err
}

func (r *Repository) FindRoleByID(ctx context.Context, id int64) (*rbac.Role, error) {
	var role rbac.Role
	err := r.db.WithContext(ctx).
		Preload("Permissions").
		Where("id = ?", id).
		First(&role).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrRoleNotFound
		}
		return nil, err
	}
	return &role, nil
}

func (r *Repository) CreateRole(ctx context.Context, role *rbac.Role) error {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&rbac.Role{}).
		Where("name = ?", role.Name).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return internal.ErrDuplicateResource.WithDetails("role name already exists")
	}
	return r.db.WithContext(ctx).Create(role).Error
}

func (r *Repository) UpdateRole(ctx context.Context, role *rbac.Role) error {
	role.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).
		Omit("Permissions").
		Save(role).Error
}

func (r *Repository) DeleteRole(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", id).Delete(&rbac.UserRole{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM role_permissions WHERE role_id = ?", id).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&rbac.Role{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return internal.ErrRoleNotFound
		}
		return nil
	})
}

func (r *Repository) ListPermissions(ctx context.Context) ([]rbac.Permission, error) {
	var permissions []rbac.Permission
	err := r.db.WithContext(ctx).Order("name ASC").Find(&permissions).Error
	return permissions, err
}

func (r *Repository) ReplaceUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(roleIDs) > 0 {
			var count int64
			err := tx.Model(&rbac.Role{}).Where("id IN ?", roleIDs).Count(&count).Error
			if err != nil {
				return err
			}
			if count != int64(len(roleIDs)) {
				return internal.ErrRoleNotFound
			}
		}

		if err := tx.Where("user_id = ?", userID).Delete(&rbac.UserRole{}).Error; err != nil {
			return err
		}
		if len(roleIDs) == 0 {
			return nil
		}

		now := time.Now()
		assignments := make([]rbac.UserRole, len(roleIDs))
		for i, roleID := range roleIDs {
			assignments[i] = rbac.UserRole{
				UserID:    userID,
				RoleID:    roleID,
				CreatedAt: now,
			}
		}
		return tx.Create(&assignments).Error
	})
}

func (r *Repository) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var role rbac.Role
		if err := tx.Where("id = ?", roleID).First(&role).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return internal.ErrRoleNotFound
			}
			return err
		}

		if len(permissionIDs) > 0 {
			var count int64
			err := tx.Model(&rbac.Permission{}).Where("id IN ?", permissionIDs).Count(&count).Error
			if err != nil {
				return err
			}
			if count != int64(len(permissionIDs)) {
				return internal.NewValidationError("one or more permission ids do not exist", internal.ErrCodeValidationFailed)
			}
		}

		if err := tx.Exec("DELETE FROM role_permissions WHERE role_id = ?", roleID).Error; err != nil {
			return err
		}
		for _, permID := range permissionIDs {
			err := tx.Exec("INSERT INTO role_permissions (role_id, permission_id) VALUES (?, ?)", roleID, permID).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) RolesForUser(ctx context.Context, userID int64) ([]rbac.Role, error) {
	var roles []rbac.Role
	err := r.db.WithContext(ctx).
		Preload("Permissions").
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", userID).
		Order("roles.name ASC").
		Find(&roles).Error
	return roles, err
}
