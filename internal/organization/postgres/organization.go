package postgres

import (
	"context"
	"crypto/rand"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	internal "github.com/ycchuang/org-management/internal"
	orgDatamodel "github.com/ycchuang/org-management/internal/core/datamodel/organization"
	"github.com/ycchuang/org-management/internal/core/datamodel/rbac"
	"github.com/ycchuang/org-management/internal/organization"
)

// Repository implements organization.RepositoryAPI using GORM.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func newULID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// AllActiveNodes returns every non-deleted row in one scan; the tree is
// assembled in memory by the service.
func (r *Repository) AllActiveNodes(ctx context.Context) ([]*orgDatamodel.Organization, error) {
	var orgs []*orgDatamodel.Organization
	err := r.db.WithContext(ctx).Order("name ASC").Find(&orgs).Error
	return orgs, err
}

func (r *Repository) FindByID(ctx context.Context, id string) (*orgDatamodel.Organization, error) {
	var org orgDatamodel.Organization
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&org).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrOrganizationNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (r *Repository) List(ctx context.Context, params organization.ListParams) ([]*orgDatamodel.Organization, int64, error) {
	query := r.db.WithContext(ctx).Model(&orgDatamodel.Organization{})

	if params.Search != "" {
		query = query.Where("name ILIKE ?", "%"+params.Search+"%")
	}
	if params.Type != "" {
		query = query.Where("type = ?", params.Type)
	}
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.ParentID != nil {
		query = query.Where("parent_id = ?", *params.ParentID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orgs []*orgDatamodel.Organization
	err := query.
		Order("name ASC").
		Limit(params.PerPage).
		Offset((params.Page - 1) * params.PerPage).
		Find(&orgs).Error
	return orgs, total, err
}

func (r *Repository) Create(ctx context.Context, org *orgDatamodel.Organization) error {
	if org.ID == "" {
		org.ID = newULID()
	}
	return r.db.WithContext(ctx).Create(org).Error
}

func (r *Repository) Update(ctx context.Context, org *orgDatamodel.Organization) error {
	org.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(org).Error
}

func (r *Repository) SoftDelete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&orgDatamodel.Organization{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return internal.ErrOrganizationNotFound
	}
	return nil
}

// Restore clears deleted_at on a soft-deleted row and returns the
// restored record.
func (r *Repository) Restore(ctx context.Context, id string) (*orgDatamodel.Organization, error) {
	result := r.db.WithContext(ctx).
		Unscoped().
		Model(&orgDatamodel.Organization{}).
		Where("id = ? AND deleted_at IS NOT NULL", id).
		Update("deleted_at", nil)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, internal.ErrOrganizationNotFound
	}
	return r.FindByID(ctx, id)
}

func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&orgDatamodel.Organization{}).
		Where("id = ?", id).
		Count(&count).Error
	return count > 0, err
}

// SiblingNameExists checks the (parent_id, name) uniqueness rule among
// non-deleted siblings. excludeID skips the row being updated.
func (r *Repository) SiblingNameExists(ctx context.Context, parentID *string, name, excludeID string) (bool, error) {
	query := r.db.WithContext(ctx).
		Model(&orgDatamodel.Organization{}).
		Where("name = ?", name)

	if parentID == nil {
		query = query.Where("parent_id IS NULL")
	} else {
		query = query.Where("parent_id = ?", *parentID)
	}
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}

	var count int64
	err := query.Count(&count).Error
	return count > 0, err
}

func (r *Repository) CountMembers(ctx context.Context, id string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&orgDatamodel.Membership{}).
		Joins("JOIN users ON users.id = organization_user.user_id AND users.deleted_at IS NULL").
		Where("organization_user.organization_id = ?", id).
		Count(&count).Error
	return count, err
}

// memberRow is the flat projection of the membership join.
type memberRow struct {
	ID         int64
	Name       string
	Email      string
	EmployeeID *string
	IsActive   bool
}

func (r *Repository) MembersWithRoles(ctx context.Context, id string, page, perPage int) ([]organization.Member, int64, error) {
	base := r.db.WithContext(ctx).
		Table("users").
		Joins("JOIN organization_user ON organization_user.user_id = users.id").
		Where("organization_user.organization_id = ?", id).
		Where("users.deleted_at IS NULL")

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []memberRow
	err := base.
		Select("users.id, users.name, users.email, users.employee_id, users.is_active").
		Order("users.name ASC").
		Limit(perPage).
		Offset((page - 1) * perPage).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	if len(rows) == 0 {
		return nil, total, nil
	}

	userIDs := make([]int64, len(rows))
	for i, row := range rows {
		userIDs[i] = row.ID
	}

	rolesByUser, err := r.rolesForUsers(ctx, userIDs)
	if err != nil {
		return nil, 0, err
	}

	members := make([]organization.Member, len(rows))
	for i, row := range rows {
		roles := rolesByUser[row.ID]
		if roles == nil {
			roles = []rbac.Role{}
		}
		members[i] = organization.Member{
			ID:         row.ID,
			Name:       row.Name,
			Email:      row.Email,
			EmployeeID: row.EmployeeID,
			IsActive:   row.IsActive,
			Roles:      roles,
		}
	}
	return members, total, nil
}

func (r *Repository) rolesForUsers(ctx context.Context, userIDs []int64) (map[int64][]rbac.Role, error) {
	var assignments []rbac.UserRole
	err := r.db.WithContext(ctx).
		Where("user_id IN ?", userIDs).
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		return map[int64][]rbac.Role{}, nil
	}

	roleIDs := make([]int64, 0, len(assignments))
	for _, a := range assignments {
		roleIDs = append(roleIDs, a.RoleID)
	}

	var roles []rbac.Role
	err = r.db.WithContext(ctx).
		Preload("Permissions").
		Where("id IN ?", roleIDs).
		Find(&roles).Error
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]rbac.Role, len(roles))
	for _, role := range roles {
		byID[role.ID] = role
	}

	result := make(map[int64][]rbac.Role, len(userIDs))
	for _, a := range assignments {
		if role, ok := byID[a.RoleID]; ok {
			result[a.UserID] = append(result[a.UserID], role)
		}
	}
	return result, nil
}
