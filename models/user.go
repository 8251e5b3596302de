package models

import (
	"time"

	"gorm.io/gorm"
)

// Role values for User.Role
const (
	RoleAdmin      = "admin"
	RoleTechnician = "technician"
)

// User represents a user account in the system (admin or technician)
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Name         string         `gorm:"not null" json:"name"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	Role         string         `gorm:"not null;default:'technician'" json:"role"` // "admin" or "technician"
	PasswordHash string         `gorm:"not null" json:"-"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// IsAdmin returns true when the account has the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsTechnician returns true when the account has the technician role
func (u *User) IsTechnician() bool {
	return u.Role == RoleTechnician
}
