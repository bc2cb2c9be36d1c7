package models

import (
	"time"

	"gorm.io/datatypes"
)

// TicketStatus represents the lifecycle state of a support ticket.
type TicketStatus int

// TicketStatus constants define ticket lifecycle states.
const (
	// TicketStatusOpen awaits a first or follow-up response.
	TicketStatusOpen TicketStatus = 1
	// TicketStatusAnswered awaits the user's reply.
	TicketStatusAnswered TicketStatus = 2
	// TicketStatusClosed marks a resolved ticket.
	TicketStatusClosed TicketStatus = 3
)

// TicketPriority represents the urgency of a support ticket.
type TicketPriority int

// TicketPriority constants define ticket urgency levels.
const (
	// TicketPriorityLow is the default urgency.
	TicketPriorityLow TicketPriority = 1
	// TicketPriorityNormal marks routine issues.
	TicketPriorityNormal TicketPriority = 2
	// TicketPriorityHigh marks money-affecting issues.
	TicketPriorityHigh TicketPriority = 3
)

// SupportTicket records a user's support conversation.
type SupportTicket struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Reference string `gorm:"type:text;not null;uniqueIndex"` // External reference (UUID).

	UserID uint64 `gorm:"not null;index"`    // Reporting user ID.
	User   User   `gorm:"foreignKey:UserID"` // Reporting user record.

	Subject  string         `gorm:"type:varchar(255);not null"`       // Ticket subject.
	Messages datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"` // Conversation entries, oldest first.

	Status   TicketStatus   `gorm:"not null;default:1;index"` // Lifecycle state.
	Priority TicketPriority `gorm:"not null;default:1"`       // Urgency level.

	AssignedTo *uint64    `` // Admin handling the ticket.
	ClosedAt   *time.Time `` // Resolution time.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// FAQ represents a published frequently-asked question.
type FAQ struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Question string `gorm:"type:text;not null"`  // Question text.
	Answer   string `gorm:"type:text;not null"`  // Answer text.
	Category string `gorm:"type:varchar(255)"`   // Grouping label.

	SortOrder int  `gorm:"not null;default:0"`    // Display ordering weight.
	IsEnabled bool `gorm:"not null;default:true"` // Whether the entry is visible.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
