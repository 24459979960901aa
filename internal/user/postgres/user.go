package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	internal "github.com/ycchuang/org-management/internal"
	orgDatamodel "github.com/ycchuang/org-management/internal/core/datamodel/organization"
	userDatamodel "github.com/ycchuang/org-management/internal/core/datamodel/user"
	"github.com/ycchuang/org-management/internal/user"
)

// Repository implements user.RepositoryAPI using GORM.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindByID(ctx context.Context, id int64) (*userDatamodel.User, error) {
	var u userDatamodel.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *Repository) List(ctx context.Context, params user.ListParams) ([]*userDatamodel.User, int64, error) {
	query := r.db.WithContext(ctx).Model(&userDatamodel.User{})

	if params.Search != "" {
		pattern := "%" + params.Search + "%"
		query = query.Where("name ILIKE ? OR email ILIKE ?", pattern, pattern)
	}
	if params.Active != nil {
		query = query.Where("is_active = ?", *params.Active)
	}
	if params.OrgID != "" {
		query = query.
			Joins("JOIN organization_user ON organization_user.user_id = users.id").
			Where("organization_user.organization_id = ?", params.OrgID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []*userDatamodel.User
	err := query.
		Order("users.name ASC").
		Limit(params.PerPage).
		Offset((params.Page - 1) * params.PerPage).
		Find(&users).Error
	return users, total, err
}

func (r *Repository) Create(ctx context.Context, u *userDatamodel.User) error {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("email = ?", u.Email).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return internal.ErrDuplicateResource.WithDetails("email already registered")
	}
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *Repository) Update(ctx context.Context, u *userDatamodel.User) error {
	u.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(u).Error
}

func (r *Repository) SoftDelete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&userDatamodel.User{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return internal.ErrUserNotFound
	}
	return nil
}

func (r *Repository) OrganizationIDs(ctx context.Context, userID int64) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&orgDatamodel.Membership{}).
		Where("user_id = ?", userID).
		Order("organization_id ASC").
		Pluck("organization_id", &ids).Error
	return ids, err
}

// ReplaceOrganizations swaps the membership set inside one transaction.
// Unknown org ids abort the whole call so a typo cannot silently drop
// memberships.
func (r *Repository) ReplaceOrganizations(ctx context.Context, userID int64, orgIDs []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(orgIDs) > 0 {
			var count int64
			err := tx.Model(&orgDatamodel.Organization{}).
				Where("id IN ?", orgIDs).
				Count(&count).Error
			if err != nil {
				return err
			}
			if count != int64(len(orgIDs)) {
				return internal.ErrOrganizationNotFound
			}
		}

		if err := tx.Where("user_id = ?", userID).Delete(&orgDatamodel.Membership{}).Error; err != nil {
			return err
		}

		if len(orgIDs) == 0 {
			return nil
		}

		now := time.Now()
		memberships := make([]orgDatamodel.Membership, len(orgIDs))
		for i, orgID := range orgIDs {
			memberships[i] = orgDatamodel.Membership{
				OrganizationID: orgID,
				UserID:         userID,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
		}
		return tx.Create(&memberships).Error
	})
}
