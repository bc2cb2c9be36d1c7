package models

import (
	"encoding/json"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openSettingTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "models-test.db")
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := conn.AutoMigrate(&Setting{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func TestSettingValue_RoundTripsOnSQLite(t *testing.T) {
	conn := openSettingTestDB(t)

	// SQLite's type affinity turns stored scalar text like "10" into a
	// number; every JSON shape must still come back parseable.
	cases := map[string]string{
		"INT_SCALAR":    `10`,
		"FLOAT_SCALAR":  `2.5`,
		"BOOL_SCALAR":   `true`,
		"STRING_SCALAR": `"hello"`,
		"OBJECT":        `{"a":1}`,
		"ARRAY":         `[1,2,3]`,
	}
	for key, raw := range cases {
		setting := Setting{Key: key, Value: []byte(raw)}
		if errCreate := conn.Create(&setting).Error; errCreate != nil {
			t.Fatalf("%s: create: %v", key, errCreate)
		}
	}

	for key, raw := range cases {
		var loaded Setting
		if errFind := conn.Where("key = ?", key).First(&loaded).Error; errFind != nil {
			t.Fatalf("%s: read back: %v", key, errFind)
		}
		var want, got any
		if errWant := json.Unmarshal([]byte(raw), &want); errWant != nil {
			t.Fatalf("%s: parse expectation: %v", key, errWant)
		}
		if errGot := json.Unmarshal(loaded.Value, &got); errGot != nil {
			t.Fatalf("%s: stored value is not valid json (%q): %v", key, loaded.Value, errGot)
		}
		if !reflect.DeepEqual(want, got) {
			t.Fatalf("%s: expected %v, got %v", key, want, got)
		}
	}
}

func TestSettingValue_ScanStorageClasses(t *testing.T) {
	cases := []struct {
		input any
		want  string
	}{
		{int64(10), "10"},
		{2.5, "2.5"},
		{true, "true"},
		{"\"hello\"", "\"hello\""},
		{[]byte(`{"a":1}`), `{"a":1}`},
		{nil, ""},
	}
	for _, tc := range cases {
		var v SettingValue
		if errScan := v.Scan(tc.input); errScan != nil {
			t.Fatalf("scan %#v: %v", tc.input, errScan)
		}
		if string(v) != tc.want {
			t.Fatalf("scan %#v: expected %q, got %q", tc.input, tc.want, v)
		}
	}

	var v SettingValue
	if errScan := v.Scan(struct{}{}); errScan == nil {
		t.Fatal("expected error for unsupported storage class")
	}
}
