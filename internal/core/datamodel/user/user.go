package user

import (
	"time"

	"gorm.io/gorm"
)

// User is the persistence model for the users table. Email and employee_id
// are unique among non-deleted rows (partial indexes in the migrations).
type User struct {
	ID              int64          `gorm:"primaryKey" json:"id"`
	Name            string         `gorm:"not null" json:"name"`
	Email           string         `gorm:"not null" json:"email"`
	PasswordHash    string         `gorm:"column:password_hash;not null" json:"-"`
	Phone           *string        `json:"phone,omitempty"`
	EmployeeID      *string        `gorm:"column:employee_id" json:"employee_id,omitempty"`
	IsActive        bool           `gorm:"column:is_active;default:true" json:"is_active"`
	EmailVerifiedAt *time.Time     `gorm:"column:email_verified_at" json:"email_verified_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsVerified() bool {
	return u.EmailVerifiedAt != nil
}
