package user

import (
	errors "github.com/ycchuang/org-management/internal"
	"github.com/ycchuang/org-management/internal/core/common/validation"
)

type CreateUserDTO struct {
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Password   string  `json:"password"`
	Phone      *string `json:"phone,omitempty"`
	EmployeeID *string `json:"employee_id,omitempty"`
}

func (d CreateUserDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("name", d.Name).Required().MaxLength(255)
	v.Field("email", d.Email).Required().Email().MaxLength(255)
	v.Field("password", d.Password).Required().MinLength(8).MaxLength(72)
	return v.Validate()
}

type UpdateUserDTO struct {
	Name       *string `json:"name,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	EmployeeID *string `json:"employee_id,omitempty"`
	IsActive   *bool   `json:"is_active,omitempty"`
}

func (d UpdateUserDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	if d.Name != nil {
		v.Field("name", *d.Name).Required().MaxLength(255)
	}
	return v.Validate()
}

type SyncOrganizationsDTO struct {
	OrganizationIDs []string `json:"organization_ids"`
}

func (d SyncOrganizationsDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	for _, id := range d.OrganizationIDs {
		v.Field("organization_ids", id).Required().MaxLength(26)
	}
	return v.Validate()
}
