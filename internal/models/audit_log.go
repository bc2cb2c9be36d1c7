package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog records a mutating admin action for traceability.
type AuditLog struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	AdminID uint64 `gorm:"not null;index"`     // Acting admin ID.
	Admin   Admin  `gorm:"foreignKey:AdminID"` // Acting admin record.

	Action string `gorm:"type:varchar(255);not null;index"` // Action label, e.g. "user.disable".
	Entity string `gorm:"type:varchar(255);index"`          // Affected entity type.

	EntityID uint64         `gorm:"index"`                            // Affected entity ID.
	Details  datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"` // Action-specific detail payload.

	IP        string `gorm:"type:text"` // Client address of the admin request.
	UserAgent string `gorm:"type:text"` // Client user agent.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Action timestamp.
}
