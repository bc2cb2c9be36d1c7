package models

import "time"

// AdminRole represents the privilege tier of an admin account.
type AdminRole int

// AdminRole constants define admin privilege tiers.
const (
	// AdminRoleSuper grants unrestricted access.
	AdminRoleSuper AdminRole = 1
	// AdminRoleModerator grants review and support access.
	AdminRoleModerator AdminRole = 2
	// AdminRoleViewer grants read-only access.
	AdminRoleViewer AdminRole = 3
)

// Admin represents a dashboard operator account.
type Admin struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	Email    string `gorm:"type:text;uniqueIndex"`          // Email address.
	Password string `gorm:"type:text;not null"`             // Hashed password.

	Role AdminRole `gorm:"not null;default:2"` // Privilege tier.

	TOTPSecret string `gorm:"type:text"` // TOTP secret when two-factor is enabled.

	Active bool `gorm:"not null;default:true"` // Whether the admin can sign in.

	LastLoginAt *time.Time `` // Last successful login time.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
