package settings

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Caqil/iprofit-admin-sub003/internal/models"
	"gorm.io/gorm"
)

var (
	snapshotMu sync.RWMutex
	snapshot   map[string]json.RawMessage
)

// Refresh reloads all settings rows into the in-process snapshot.
func Refresh(ctx context.Context, conn *gorm.DB) error {
	if conn == nil {
		return nil
	}
	var rows []models.Setting
	if errFind := conn.WithContext(ctx).Find(&rows).Error; errFind != nil {
		return errFind
	}
	next := make(map[string]json.RawMessage, len(rows))
	for _, row := range rows {
		if row.Key == "" {
			continue
		}
		next[row.Key] = json.RawMessage(row.Value)
	}
	snapshotMu.Lock()
	snapshot = next
	snapshotMu.Unlock()
	return nil
}

// DBConfigValue returns the raw JSON value for key from the snapshot.
func DBConfigValue(key string) (json.RawMessage, bool) {
	snapshotMu.RLock()
	defer snapshotMu.RUnlock()
	raw, ok := snapshot[key]
	if !ok || len(raw) == 0 {
		return nil, false
	}
	return raw, true
}

// SetDBConfigValue updates one key in the snapshot without touching the DB.
// Handlers call it after a successful write so readers see the new value
// without waiting for the next Refresh.
func SetDBConfigValue(key string, raw json.RawMessage) {
	if key == "" {
		return
	}
	snapshotMu.Lock()
	if snapshot == nil {
		snapshot = make(map[string]json.RawMessage)
	}
	if len(raw) == 0 {
		delete(snapshot, key)
	} else {
		snapshot[key] = raw
	}
	snapshotMu.Unlock()
}
