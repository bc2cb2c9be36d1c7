package models

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"time"
)

// SettingValue stores a raw JSON payload. Unlike object or array columns, a
// setting may hold a bare scalar, and SQLite's type affinity converts a
// stored "10" back to an integer in a jsonb-declared column. Scan re-encodes
// numeric and boolean storage classes into their JSON text form so values
// round-trip on both dialects.
type SettingValue []byte

// Value implements driver.Valuer for database serialization.
func (v SettingValue) Value() (driver.Value, error) {
	if len(v) == 0 {
		return nil, nil
	}
	return []byte(v), nil
}

// Scan implements sql.Scanner for database deserialization.
func (v *SettingValue) Scan(value any) error {
	if v == nil {
		return fmt.Errorf("setting value scan: nil receiver")
	}
	switch typed := value.(type) {
	case nil:
		*v = nil
	case []byte:
		*v = append(SettingValue(nil), typed...)
	case string:
		*v = SettingValue(typed)
	case int64:
		*v = SettingValue(strconv.AppendInt(nil, typed, 10))
	case float64:
		*v = SettingValue(strconv.AppendFloat(nil, typed, 'g', -1, 64))
	case bool:
		*v = SettingValue(strconv.AppendBool(nil, typed))
	default:
		return fmt.Errorf("setting value scan: unsupported type %T", value)
	}
	return nil
}

// MarshalJSON returns the stored payload as-is.
func (v SettingValue) MarshalJSON() ([]byte, error) {
	if len(v) == 0 {
		return []byte("null"), nil
	}
	return v, nil
}

// UnmarshalJSON stores the raw payload as-is.
func (v *SettingValue) UnmarshalJSON(data []byte) error {
	*v = append(SettingValue(nil), data...)
	return nil
}

// Setting stores one runtime configuration value keyed by name.
type Setting struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Key   string       `gorm:"type:text;not null;uniqueIndex"` // Setting key.
	Value SettingValue `gorm:"type:jsonb"`                     // JSON value payload.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
