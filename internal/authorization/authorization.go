package authorization

import (
	"context"

	"github.com/ycchuang/org-management/internal/core/datamodel/rbac"
)

// RepositoryAPI is the persistence contract for roles, permissions and
// their assignments.
type RepositoryAPI interface {
	ListRoles(ctx context.Context) ([]rbac.Role, error)
	FindRoleByID(ctx context.Context, id int64) (*rbac.Role, error)
	CreateRole(ctx context.Context, role *rbac.Role) error
	UpdateRole(ctx context.Context, role *rbac.Role) error
	DeleteRole(ctx context.Context, id int64) error
	ListPermissions(ctx context.Context) ([]rbac.Permission, error)
	// ReplaceUserRoles swaps the user's role set transactionally.
	ReplaceUserRoles(ctx context.Context, userID int64, roleIDs []int64) error
	// ReplaceRolePermissions swaps a role's permission set transactionally.
	ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	RolesForUser(ctx context.Context, userID int64) ([]rbac.Role, error)
}
