package models

import "time"

// ReferralStatus represents the payout state of a referral bonus.
type ReferralStatus int

// ReferralStatus constants define referral bonus states.
const (
	// ReferralStatusPending awaits bonus payout.
	ReferralStatusPending ReferralStatus = 1
	// ReferralStatusPaid marks a credited bonus.
	ReferralStatusPaid ReferralStatus = 2
	// ReferralStatusCancelled marks a voided bonus.
	ReferralStatusCancelled ReferralStatus = 3
)

// Referral links an inviter to an invited user and tracks the bonus payout.
type Referral struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ReferrerID uint64 `gorm:"not null;index"`        // Inviting user ID.
	Referrer   User   `gorm:"foreignKey:ReferrerID"` // Inviting user record.

	ReferredID uint64 `gorm:"not null;uniqueIndex"`  // Invited user ID.
	Referred   User   `gorm:"foreignKey:ReferredID"` // Invited user record.

	BonusAmount float64 `gorm:"type:decimal(20,8);not null;default:0"` // One-time signup bonus.
	ProfitShare float64 `gorm:"type:decimal(10,4);not null;default:0"` // Ongoing profit share in percent.

	Status ReferralStatus `gorm:"not null;default:1;index"` // Payout state.
	PaidAt *time.Time     ``                                // Bonus credit time.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
