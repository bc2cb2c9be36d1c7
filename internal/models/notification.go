package models

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationChannel represents the delivery channel for a notification.
type NotificationChannel int

// NotificationChannel constants define delivery channels.
const (
	// NotificationChannelInApp stores the message for in-app display only.
	NotificationChannelInApp NotificationChannel = 1
	// NotificationChannelEmail additionally delivers the message over SMTP.
	NotificationChannelEmail NotificationChannel = 2
)

// NotificationStatus represents the delivery state of a notification.
type NotificationStatus int

// NotificationStatus constants define delivery states.
const (
	// NotificationStatusPending awaits delivery.
	NotificationStatusPending NotificationStatus = 1
	// NotificationStatusSent marks a delivered notification.
	NotificationStatusSent NotificationStatus = 2
	// NotificationStatusFailed marks a delivery failure.
	NotificationStatusFailed NotificationStatus = 3
)

// Notification records a message addressed to one user or broadcast to all.
type Notification struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID *uint64 `gorm:"index"`             // Recipient user ID, nil for broadcast.
	User   *User   `gorm:"foreignKey:UserID"` // Recipient user record.

	Channel NotificationChannel `gorm:"not null;default:1"` // Delivery channel.

	Title   string         `gorm:"type:varchar(255);not null"`       // Subject line.
	Body    string         `gorm:"type:text;not null"`               // Message body.
	Payload datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"` // Structured extras for clients.

	Status NotificationStatus `gorm:"not null;default:1;index"` // Delivery state.
	Error  string             `gorm:"type:text"`                // Last delivery error.

	SentAt *time.Time `` // Delivery time.
	ReadAt *time.Time `` // First read time, in-app channel only.

	CreatedBy *uint64 `` // Admin who composed the message.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
