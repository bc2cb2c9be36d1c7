package models

import "time"

// TransactionType represents the business category of a money movement.
type TransactionType int

// TransactionType constants define money movement categories.
const (
	// TransactionTypeDeposit credits the wallet from an external gateway.
	TransactionTypeDeposit TransactionType = 1
	// TransactionTypeWithdrawal debits the wallet to an external account.
	TransactionTypeWithdrawal TransactionType = 2
	// TransactionTypeBonus credits a referral or promotional bonus.
	TransactionTypeBonus TransactionType = 3
	// TransactionTypeLoanDisbursement credits an approved loan principal.
	TransactionTypeLoanDisbursement TransactionType = 4
	// TransactionTypeLoanRepayment debits a loan installment.
	TransactionTypeLoanRepayment TransactionType = 5
	// TransactionTypeTaskReward credits an approved task submission reward.
	TransactionTypeTaskReward TransactionType = 6
)

// TransactionStatus represents the review lifecycle of a transaction.
type TransactionStatus int

// TransactionStatus constants define transaction lifecycle states.
const (
	// TransactionStatusPending awaits admin review.
	TransactionStatusPending TransactionStatus = 1
	// TransactionStatusApproved marks a settled transaction.
	TransactionStatusApproved TransactionStatus = 2
	// TransactionStatusRejected marks a refused transaction.
	TransactionStatusRejected TransactionStatus = 3
)

// Transaction records a single wallet movement and its review state.
type Transaction struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Reference string `gorm:"type:text;not null;uniqueIndex"` // External reference (UUID).

	UserID uint64 `gorm:"not null;index"`    // Owning user ID.
	User   User   `gorm:"foreignKey:UserID"` // Owning user record.

	Type   TransactionType `gorm:"not null;index"`                        // Movement category.
	Amount float64         `gorm:"type:decimal(20,8);not null"`           // Movement amount, always positive.
	Fee    float64         `gorm:"type:decimal(20,8);not null;default:0"` // Processing fee.

	Currency string `gorm:"type:varchar(8);not null;default:'USD'"` // ISO currency code.
	Gateway  string `gorm:"type:text"`                              // Payment gateway identifier.
	Account  string `gorm:"type:text"`                              // Destination account for withdrawals.

	Status TransactionStatus `gorm:"not null;default:1;index"` // Review state.
	Remark string            `gorm:"type:text"`                // Reviewer note.

	ReviewedBy *uint64    `` // Admin who settled the transaction.
	ReviewedAt *time.Time `` // Settlement time.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
