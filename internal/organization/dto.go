package organization

import (
	errors "github.com/ycchuang/org-management/internal"
	"github.com/ycchuang/org-management/internal/core/common/validation"
	orgDatamodel "github.com/ycchuang/org-management/internal/core/datamodel/organization"
)

type CreateOrganizationDTO struct {
	Name             string                 `json:"name"`
	Type             string                 `json:"type"`
	ParentID         *string                `json:"parent_id,omitempty"`
	ManagerUserID    *int64                 `json:"manager_user_id,omitempty"`
	Address          *string                `json:"address,omitempty"`
	Phone            *string                `json:"phone,omitempty"`
	Email            *string                `json:"email,omitempty"`
	MonthlyBudget    string                 `json:"monthly_budget,omitempty"`
	ApprovalSettings map[string]interface{} `json:"approval_settings,omitempty"`
	Settings         map[string]interface{} `json:"settings,omitempty"`
	CostCenterCode   *string                `json:"cost_center_code,omitempty"`
	Status           string                 `json:"status,omitempty"`
}

func (d CreateOrganizationDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("name", d.Name).Required().MaxLength(255)
	v.Field("type", d.Type).Required().MaxLength(100)
	if d.Status != "" {
		v.Field("status", d.Status).OneOf(string(orgDatamodel.StatusActive), string(orgDatamodel.StatusInactive))
	}
	if d.Email != nil {
		v.Field("email", *d.Email).Email().MaxLength(255)
	}
	return v.Validate()
}

// UpdateOrganizationDTO carries a partial update; nil fields are left
// untouched. ParentID uses a double pointer so "move to root" (explicit
// null) is distinguishable from "not provided".
type UpdateOrganizationDTO struct {
	Name             *string                `json:"name,omitempty"`
	Type             *string                `json:"type,omitempty"`
	ParentID         **string               `json:"parent_id,omitempty"`
	ManagerUserID    *int64                 `json:"manager_user_id,omitempty"`
	Address          *string                `json:"address,omitempty"`
	Phone            *string                `json:"phone,omitempty"`
	Email            *string                `json:"email,omitempty"`
	MonthlyBudget    *string                `json:"monthly_budget,omitempty"`
	ApprovalSettings map[string]interface{} `json:"approval_settings,omitempty"`
	Settings         map[string]interface{} `json:"settings,omitempty"`
	CostCenterCode   *string                `json:"cost_center_code,omitempty"`
	Status           *string                `json:"status,omitempty"`
}

func (d UpdateOrganizationDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	if d.Name != nil {
		v.Field("name", *d.Name).Required().MaxLength(255)
	}
	if d.Type != nil {
		v.Field("type", *d.Type).Required().MaxLength(100)
	}
	if d.Status != nil {
		v.Field("status", *d.Status).OneOf(string(orgDatamodel.StatusActive), string(orgDatamodel.StatusInactive))
	}
	if d.Email != nil {
		v.Field("email", *d.Email).Email().MaxLength(255)
	}
	return v.Validate()
}
