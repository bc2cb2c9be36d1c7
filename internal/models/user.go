package models

import (
	"time"

	"gorm.io/datatypes"
)

// KYCStatus represents the verification state of a user's identity documents.
type KYCStatus int

// KYCStatus constants define KYC verification states.
const (
	// KYCStatusUnsubmitted marks a user who has not uploaded documents.
	KYCStatusUnsubmitted KYCStatus = 1
	// KYCStatusPending marks documents awaiting review.
	KYCStatusPending KYCStatus = 2
	// KYCStatusApproved marks verified documents.
	KYCStatusApproved KYCStatus = 3
	// KYCStatusRejected marks rejected documents.
	KYCStatusRejected KYCStatus = 4
)

// User represents an end-user account on the platform.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	Name     string `gorm:"type:text"`                      // Display name.
	Email    string `gorm:"type:text;uniqueIndex"`          // Email address.
	Phone    string `gorm:"type:text;index"`                // Phone number.
	Password string `gorm:"type:text;not null"`             // Hashed password.

	PlanID *uint64 `gorm:"index"`             // Active investment plan ID.
	Plan   *Plan   `gorm:"foreignKey:PlanID"` // Active investment plan.

	Balance float64 `gorm:"type:decimal(20,8);not null;default:0"` // Wallet balance.

	ReferralCode string  `gorm:"type:text;uniqueIndex"` // Code shared with invitees.
	ReferredBy   *uint64 `gorm:"index"`                 // Referrer user ID.

	KYCStatus     KYCStatus      `gorm:"not null;default:1"`               // Identity verification state.
	KYCDocuments  datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"` // Uploaded document descriptors.
	KYCReviewedBy *uint64        ``                                        // Admin who reviewed the documents.
	KYCReviewedAt *time.Time     ``                                        // Document review time.
	KYCRemark     string         `gorm:"type:text"`                        // Review note shown to the user.

	DeviceID string `gorm:"type:text;index"` // Registered device fingerprint.

	Active   bool `gorm:"not null;default:true"`  // Whether the user can sign in.
	Disabled bool `gorm:"not null;default:false"` // Explicit disable flag.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
