package models

import (
	"time"

	"gorm.io/datatypes"
)

// SubmissionStatus represents the review state of a task submission.
type SubmissionStatus int

// SubmissionStatus constants define submission review states.
const (
	// SubmissionStatusPending awaits admin review.
	SubmissionStatusPending SubmissionStatus = 1
	// SubmissionStatusApproved marks a rewarded submission.
	SubmissionStatusApproved SubmissionStatus = 2
	// SubmissionStatusRejected marks a refused submission.
	SubmissionStatusRejected SubmissionStatus = 3
)

// Task represents a rewarded action users can complete.
type Task struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name        string `gorm:"type:varchar(255);not null"` // Task name.
	Description string `gorm:"type:text"`                  // What the user has to do.
	Criteria    string `gorm:"type:text"`                  // Proof requirements shown to reviewers.

	RewardAmount float64 `gorm:"type:decimal(20,8);not null;default:0"`  // Payout per approved submission.
	Currency     string  `gorm:"type:varchar(8);not null;default:'USD'"` // ISO currency code.

	ValidFrom  *time.Time `` // Earliest submission time.
	ValidUntil *time.Time `` // Latest submission time.

	IsEnabled bool `gorm:"not null;default:true"` // Whether submissions are accepted.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TaskSubmission records a user's proof of completing a task.
type TaskSubmission struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	TaskID uint64 `gorm:"not null;index"`    // Related task ID.
	Task   Task   `gorm:"foreignKey:TaskID"` // Related task record.

	UserID uint64 `gorm:"not null;index"`    // Submitting user ID.
	User   User   `gorm:"foreignKey:UserID"` // Submitting user record.

	Proof datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"` // Proof attachments and fields.

	Status SubmissionStatus `gorm:"not null;default:1;index"` // Review state.
	Remark string           `gorm:"type:text"`                // Reviewer note.

	ReviewedBy *uint64    `` // Admin who reviewed the submission.
	ReviewedAt *time.Time `` // Review time.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
