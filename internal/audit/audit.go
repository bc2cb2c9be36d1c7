package audit

import (
	"context"
	"encoding/json"

	"github.com/Caqil/iprofit-admin-sub003/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Recorder persists mutating admin actions to the audit log.
type Recorder struct {
	db *gorm.DB
}

// NewRecorder constructs a Recorder.
func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

// Record writes one audit entry. Failures are logged, never surfaced: an
// audit defect must not fail the admin action it describes.
func (r *Recorder) Record(ctx context.Context, adminID uint64, action, entity string, entityID uint64, details any, ip, userAgent string) {
	if r == nil || r.db == nil || adminID == 0 || action == "" {
		return
	}

	payload := datatypes.JSON([]byte("{}"))
	if details != nil {
		if raw, errMarshal := json.Marshal(details); errMarshal == nil {
			payload = datatypes.JSON(raw)
		}
	}

	entry := models.AuditLog{
		AdminID:   adminID,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Details:   payload,
		IP:        ip,
		UserAgent: userAgent,
	}
	if errCreate := r.db.WithContext(ctx).Create(&entry).Error; errCreate != nil {
		log.WithError(errCreate).WithField("action", action).Warn("audit: record failed")
	}
}
