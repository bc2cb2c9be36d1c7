package models

import (
	"time"

	"gorm.io/datatypes"
)

// Plan represents an investment plan configuration.
type Plan struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name        string  `gorm:"type:varchar(255);not null"`            // Plan name.
	Price       float64 `gorm:"type:decimal(20,8);not null;default:0"` // Purchase price.
	Currency    string  `gorm:"type:varchar(8);not null;default:'USD'"` // ISO currency code.
	Description string  `gorm:"type:text"`                             // Plan description.

	DepositLimit    float64 `gorm:"type:decimal(20,8);not null;default:0"` // Max deposit per day, 0 means unlimited.
	WithdrawalLimit float64 `gorm:"type:decimal(20,8);not null;default:0"` // Max withdrawal per day, 0 means unlimited.
	ProfitLimit     float64 `gorm:"type:decimal(20,8);not null;default:0"` // Max daily profit, 0 means unlimited.

	Features datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"` // Marketing feature list.

	SortOrder int  `gorm:"not null;default:0"`     // Display ordering weight.
	IsDefault bool `gorm:"not null;default:false"` // Assigned to new signups.
	IsEnabled bool `gorm:"not null;default:true"`  // Whether the plan is active.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
