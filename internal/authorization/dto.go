package authorization

import (
	errors "github.com/ycchuang/org-management/internal"
	"github.com/ycchuang/org-management/internal/core/common/validation"
)

type CreateRoleDTO struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (d CreateRoleDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("name", d.Name).Required().MaxLength(100)
	v.Field("description", d.Description).MaxLength(255)
	return v.Validate()
}

type UpdateRoleDTO struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (d UpdateRoleDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	if d.Name != nil {
		v.Field("name", *d.Name).Required().MaxLength(100)
	}
	if d.Description != nil {
		v.Field("description", *d.Description).MaxLength(255)
	}
	return v.Validate()
}

type AssignRolesDTO struct {
	RoleIDs []int64 `json:"role_ids"`
}

type AssignPermissionsDTO struct {
	PermissionIDs []int64 `json:"permission_ids"`
}
