package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ycchuang/org-management/internal"
	"github.com/ycchuang/org-management/internal/auth"
	userDatamodel "github.com/ycchuang/org-management/internal/core/datamodel/user"
)

// Repository is the gorm-backed credential store.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*userDatamodel.User, error) {
	var user userDatamodel.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *Repository) FindByID(ctx context.Context, id int64) (*userDatamodel.User, error) {
	var user userDatamodel.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Create inserts a user after checking email/employee_id uniqueness among
// non-deleted rows. The partial unique indexes are the backstop; this
// check turns the common case into a typed conflict instead of a driver
// error.
func (r *Repository) Create(ctx context.Context, u *userDatamodel.User) error {
	var count int64
	query := r.db.WithContext(ctx).Model(&userDatamodel.User{}).Where("email = ?", u.Email)
	if u.EmployeeID != nil {
		query = query.Or("employee_id = ?", *u.EmployeeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return internal.ErrDuplicateResource
	}

	return r.db.WithContext(ctx).Create(u).Error
}

func (r *Repository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return r.db.WithContext(ctx).Model(&userDatamodel.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"password_hash": passwordHash,
			"updated_at":    time.Now(),
		}).Error
}

func (r *Repository) MarkEmailVerified(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&userDatamodel.User{}).
		Where("id = ? AND email_verified_at IS NULL", id).
		Updates(map[string]interface{}{
			"email_verified_at": at,
			"updated_at":        time.Now(),
		}).Error
}

func (r *Repository) GetUserWithPermissions(ctx context.Context, id int64) (*internal.AuthUser, error) {
	user, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, internal.ErrUserNotFound
	}

	permQuery := `SELECT DISTINCT p.name
	             FROM permissions p
	             JOIN role_permissions rp ON p.id = rp.permission_id
	             JOIN user_roles ur ON rp.role_id = ur.role_id
	             WHERE ur.user_id = ?`

	rows, err := r.db.WithContext(ctx).Raw(permQuery, id).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var permissions []string
	for rows.Next() {
		var permName string
		if err := rows.Scan(&permName); err != nil {
			return nil, err
		}
		permissions = append(permissions, permName)
	}

	return &internal.AuthUser{
		ID:            user.ID,
		Email:         user.Email,
		Name:          user.Name,
		EmailVerified: user.IsVerified(),
		Permissions:   permissions,
	}, nil
}

func (r *Repository) Transaction(ctx context.Context, fn func(txRepo auth.RepositoryAPI) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}
