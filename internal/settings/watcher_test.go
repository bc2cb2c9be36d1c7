package settings

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/Caqil/iprofit-admin-sub003/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "settings-test.db")
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := conn.AutoMigrate(&models.Setting{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func TestWatcher_RefreshPicksUpChanges(t *testing.T) {
	conn := openTestDB(t)

	setting := models.Setting{Key: "SITE_NAME", Value: []byte(`"first"`)}
	if errCreate := conn.Create(&setting).Error; errCreate != nil {
		t.Fatalf("create setting: %v", errCreate)
	}

	w := NewWatcher(conn, time.Hour)
	w.refresh()

	raw, ok := DBConfigValue("SITE_NAME")
	if !ok {
		t.Fatal("expected snapshot to hold SITE_NAME")
	}
	var value string
	if errParse := json.Unmarshal(raw, &value); errParse != nil || value != "first" {
		t.Fatalf("expected value %q, got %q (err %v)", "first", value, errParse)
	}

	if errSave := conn.Model(&models.Setting{}).
		Where("key = ?", "SITE_NAME").
		Update("value", []byte(`"second"`)).Error; errSave != nil {
		t.Fatalf("update setting: %v", errSave)
	}
	w.refresh()

	raw, ok = DBConfigValue("SITE_NAME")
	if !ok {
		t.Fatal("expected snapshot to hold SITE_NAME after refresh")
	}
	if errParse := json.Unmarshal(raw, &value); errParse != nil || value != "second" {
		t.Fatalf("expected refreshed value %q, got %q (err %v)", "second", value, errParse)
	}
}

func TestWatcher_StartStopLifecycle(t *testing.T) {
	conn := openTestDB(t)
	w := NewWatcher(conn, 5*time.Millisecond)

	w.Start()
	w.Start() // second start is a no-op
	time.Sleep(20 * time.Millisecond)
	w.Stop()
	w.Stop() // second stop is a no-op

	// The loop must be fully stopped: a change now must not appear without
	// an explicit refresh.
	setting := models.Setting{Key: "AFTER_STOP", Value: []byte(`true`)}
	if errCreate := conn.Create(&setting).Error; errCreate != nil {
		t.Fatalf("create setting: %v", errCreate)
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok := DBConfigValue("AFTER_STOP"); ok {
		t.Fatal("expected no refresh after stop")
	}

	if errRefresh := Refresh(context.Background(), conn); errRefresh != nil {
		t.Fatalf("refresh: %v", errRefresh)
	}
	if _, ok := DBConfigValue("AFTER_STOP"); !ok {
		t.Fatal("expected value after explicit refresh")
	}
}
