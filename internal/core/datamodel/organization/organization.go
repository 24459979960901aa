package organization

import (
	"time"

	"gorm.io/gorm"
)

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

// Organization is the persistence model for the organizations table.
// IDs are ULIDs; parent_id forms a forest (NULL = root). (parent_id, name)
// is unique among non-deleted siblings.
type Organization struct {
	ID               string         `gorm:"primaryKey;size:26" json:"id"`
	Name             string         `gorm:"not null" json:"name"`
	Type             string         `gorm:"not null" json:"type"`
	ParentID         *string        `gorm:"column:parent_id;size:26" json:"parent_id"`
	ManagerUserID    *int64         `gorm:"column:manager_user_id" json:"manager_user_id,omitempty"`
	Address          *string        `json:"address,omitempty"`
	Phone            *string        `json:"phone,omitempty"`
	Email            *string        `json:"email,omitempty"`
	MonthlyBudget    string         `gorm:"column:monthly_budget;type:numeric(14,2);default:0" json:"monthly_budget"`
	ApprovalSettings JSONMap        `gorm:"column:approval_settings;serializer:json" json:"approval_settings,omitempty"`
	Settings         JSONMap        `gorm:"serializer:json" json:"settings,omitempty"`
	CostCenterCode   *string        `gorm:"column:cost_center_code" json:"cost_center_code,omitempty"`
	Status           Status         `gorm:"not null;default:ACTIVE" json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

type JSONMap map[string]interface{}

func (Organization) TableName() string {
	return "organizations"
}

// Membership is the organization_user join table row. No attributes beyond
// timestamps.
type Membership struct {
	OrganizationID string    `gorm:"primaryKey;size:26" json:"organization_id"`
	UserID         int64     `gorm:"primaryKey" json:"user_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Membership) TableName() string {
	return "organization_user"
}
