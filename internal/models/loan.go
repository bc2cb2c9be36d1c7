package models

import (
	"time"

	"gorm.io/datatypes"
)

// LoanStatus represents the lifecycle state of a loan.
type LoanStatus int

// LoanStatus constants define loan lifecycle states.
const (
	// LoanStatusPending awaits admin review.
	LoanStatusPending LoanStatus = 1
	// LoanStatusApproved marks an approved but not yet disbursed loan.
	LoanStatusApproved LoanStatus = 2
	// LoanStatusRejected marks a refused application.
	LoanStatusRejected LoanStatus = 3
	// LoanStatusActive marks a disbursed loan with outstanding balance.
	LoanStatusActive LoanStatus = 4
	// LoanStatusCompleted marks a fully repaid loan.
	LoanStatusCompleted LoanStatus = 5
	// LoanStatusDefaulted marks a loan written off after missed installments.
	LoanStatusDefaulted LoanStatus = 6
)

// Loan records a loan application and its repayment progress.
type Loan struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`    // Borrowing user ID.
	User   User   `gorm:"foreignKey:UserID"` // Borrowing user record.

	Amount       float64 `gorm:"type:decimal(20,8);not null"`           // Principal amount.
	InterestRate float64 `gorm:"type:decimal(10,4);not null"`           // Annual interest rate in percent.
	TenureMonths int     `gorm:"not null"`                              // Repayment tenure in months.
	EMIAmount    float64 `gorm:"type:decimal(20,8);not null;default:0"` // Monthly installment.

	Purpose     string `gorm:"type:text"`          // Declared loan purpose.
	CreditScore int    `gorm:"not null;default:0"` // Score recorded at application time.

	Status LoanStatus `gorm:"not null;default:1;index"` // Lifecycle state.
	Remark string     `gorm:"type:text"`                // Reviewer note.

	RepaidAmount float64        `gorm:"type:decimal(20,8);not null;default:0"` // Sum of recorded repayments.
	Schedule     datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"`      // Installment schedule entries.

	ApprovedBy  *uint64    `` // Admin who approved the application.
	ApprovedAt  *time.Time `` // Approval time.
	DisbursedAt *time.Time `` // Principal disbursement time.
	CompletedAt *time.Time `` // Full repayment time.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
