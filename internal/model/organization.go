package model

import (
	"time"

	"gorm.io/gorm"
)

// Membership roles
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Organization groups the strategic work of a team
type Organization struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Name        string         `json:"name" gorm:"type:varchar(100);not null"`
	Description string         `json:"description" gorm:"type:text"`
	CreatedBy   uint           `json:"created_by" gorm:"index;not null"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

// Membership associates users with organizations
type Membership struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	UserID         uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_user_organization"`
	OrganizationID uint      `json:"organization_id" gorm:"not null;uniqueIndex:idx_user_organization;index"`
	Role           string    `json:"role" gorm:"type:varchar(20);not null;default:'member'"` // 'owner', 'admin' or 'member'
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Relations
	Organization Organization `json:"organization,omitempty" gorm:"foreignKey:OrganizationID"`
}

// TableName keeps the association table name used by the web client
func (Membership) TableName() string {
	return "user_organizations"
}
