package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Caqil/iprofit-admin-sub003/internal/mailer"
	"github.com/Caqil/iprofit-admin-sub003/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Dispatcher persists notifications and delivers them over the configured
// channel. Delivery state lands on the row; a channel failure marks the row
// failed without surfacing an error to the composing admin.
type Dispatcher struct {
	db     *gorm.DB
	sender mailer.Sender
}

// NewDispatcher constructs a Dispatcher. sender may be nil when no email
// channel is configured; email notifications then record a failure.
func NewDispatcher(db *gorm.DB, sender mailer.Sender) *Dispatcher {
	return &Dispatcher{db: db, sender: sender}
}

// Dispatch stores the notification and attempts delivery for each recipient.
// It returns the stored rows, one per recipient (one row for broadcasts).
func (d *Dispatcher) Dispatch(ctx context.Context, template models.Notification, recipients []models.User) ([]models.Notification, error) {
	if d == nil || d.db == nil {
		return nil, errors.New("notify: dispatcher not configured")
	}

	// Broadcast: one row with no recipient, in-app only.
	if len(recipients) == 0 {
		row := template
		row.UserID = nil
		row.Channel = models.NotificationChannelInApp
		row.Status = models.NotificationStatusSent
		now := time.Now().UTC()
		row.SentAt = &now
		if errCreate := d.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
			return nil, errCreate
		}
		return []models.Notification{row}, nil
	}

	rows := make([]models.Notification, 0, len(recipients))
	for _, recipient := range recipients {
		row := template
		userID := recipient.ID
		row.UserID = &userID
		row.Status = models.NotificationStatusPending
		if errCreate := d.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
			return rows, errCreate
		}

		d.deliver(ctx, &row, recipient)
		rows = append(rows, row)
	}
	return rows, nil
}

// deliver attempts channel delivery and records the outcome on the row.
func (d *Dispatcher) deliver(ctx context.Context, row *models.Notification, recipient models.User) {
	now := time.Now().UTC()

	if row.Channel != models.NotificationChannelEmail {
		row.Status = models.NotificationStatusSent
		row.SentAt = &now
		d.updateDelivery(ctx, row)
		return
	}

	email := strings.TrimSpace(recipient.Email)
	if d.sender == nil || email == "" {
		row.Status = models.NotificationStatusFailed
		row.Error = "no email channel for recipient"
		d.updateDelivery(ctx, row)
		return
	}

	if errSend := d.sender.Send(email, row.Title, row.Body); errSend != nil {
		log.WithError(errSend).WithField("user_id", recipient.ID).Warn("notify: email delivery failed")
		row.Status = models.NotificationStatusFailed
		row.Error = errSend.Error()
		d.updateDelivery(ctx, row)
		return
	}

	row.Status = models.NotificationStatusSent
	row.SentAt = &now
	d.updateDelivery(ctx, row)
}

func (d *Dispatcher) updateDelivery(ctx context.Context, row *models.Notification) {
	if errSave := d.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{
			"status":  row.Status,
			"error":   row.Error,
			"sent_at": row.SentAt,
		}).Error; errSave != nil {
		log.WithError(errSave).Warn("notify: update delivery state failed")
	}
}
