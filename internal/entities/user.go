package entities

import "time"

type UserRole string

const (
	UserRoleAdmin  UserRole = "admin"
	UserRoleEditor UserRole = "editor" // May create and modify dataset records
	UserRoleViewer UserRole = "viewer" // Read-only
)

func (r UserRole) Valid() bool {
	switch r {
	case UserRoleAdmin, UserRoleEditor, UserRoleViewer:
		return true
	}
	return false
}

// CanWrite reports whether the role may modify dataset records.
func (r UserRole) CanWrite() bool {
	return r == UserRoleAdmin || r == UserRoleEditor
}

type User struct {
	ID               uint       `gorm:"primaryKey;column:user_id" json:"user_id"`
	Username         string     `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Email            string     `gorm:"uniqueIndex;size:254;not null" json:"email"`
	PasswordHash     string     `gorm:"size:72" json:"-"`
	Role             UserRole   `gorm:"size:16;default:editor" json:"role"`
	TokenHash        string     `gorm:"index;size:64" json:"-"`
	TokenCreatedAt   *time.Time `json:"-"`
	FailedLoginCount int        `json:"-"`
	LockedUntil      *time.Time `json:"-"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (User) TableName() string { return "users" }
