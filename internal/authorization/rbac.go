package authorization

import (
	"log/slog"
	"net/http"

	"github.com/ycchuang/org-management/internal"
)

// Well-known permission names seeded with the base roles.
const (
	PermManageUsers         = "manage_users"
	PermManageOrganizations = "manage_organizations"
	PermManageRoles         = "manage_roles"
	PermViewDirectory       = "view_directory"
)

// RBAC gates routes on the permissions the auth middleware loaded into
// the request context.
type RBAC struct {
	logger *slog.Logger
}

func NewRBAC(logger *slog.Logger) *RBAC {
	return &RBAC{logger: logger}
}

func (ra *RBAC) Check(next http.HandlerFunc, permission string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := internal.UserFromContext(r.Context())
		if !ok || user == nil {
			ra.logger.Warn("authorization check failed: user not found in context")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		if !user.HasPermission(permission) {
			ra.logger.WarnContext(r.Context(), "access denied: insufficient permissions",
				"user_id", user.ID,
				"required_permission", permission,
				"user_permissions", user.Permissions)
			http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	}
}

func (ra *RBAC) RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return ra.Check(next.ServeHTTP, permission)
	}
}

func (ra *RBAC) RequireManageUsers() func(http.Handler) http.Handler {
	return ra.RequirePermission(PermManageUsers)
}

func (ra *RBAC) RequireManageOrganizations() func(http.Handler) http.Handler {
	return ra.RequirePermission(PermManageOrganizations)
}

func (ra *RBAC) RequireManageRoles() func(http.Handler) http.Handler {
	return ra.RequirePermission(PermManageRoles)
}
