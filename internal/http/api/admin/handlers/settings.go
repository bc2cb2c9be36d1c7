package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Caqil/iprofit-admin-sub003/internal/audit"
	"github.com/Caqil/iprofit-admin-sub003/internal/models"
	internalsettings "github.com/Caqil/iprofit-admin-sub003/internal/settings"
)

// SettingHandler manages admin CRUD for settings values.
type SettingHandler struct {
	db    *gorm.DB        // Database handle for settings.
	audit *audit.Recorder // Audit trail for setting changes.
}

// NewSettingHandler constructs a settings handler.
func NewSettingHandler(db *gorm.DB, recorder *audit.Recorder) *SettingHandler {
	return &SettingHandler{db: db, audit: recorder}
}

// createSettingRequest captures the payload for creating a setting.
type createSettingRequest struct {
	Key   string          `json:"key"`   // Setting key.
	Value json.RawMessage `json:"value"` // JSON value payload.
}

var nonNegativeNumberSettingKeys = map[string]struct{}{
	internalsettings.ReferralBonusKey:       {},
	internalsettings.ReferralProfitShareKey: {},
	internalsettings.RateLimitRedisDBKey:    {},
}

var errNonNegativeNumberValue = errors.New("value must be a non-negative number")

// Create validates and inserts a setting, then refreshes the snapshot.
func (h *SettingHandler) Create(c *gin.Context) {
	var body createSettingRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	key := strings.TrimSpace(body.Key)
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
		return
	}
	if errValidate := validateSettingValue(key, body.Value); errValidate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errValidate.Error()})
		return
	}

	var existing models.Setting
	if errFind := h.db.WithContext(c.Request.Context()).Where("key = ?", key).First(&existing).Error; errFind == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "key already exists"})
		return
	}

	setting := models.Setting{
		Key:   key,
		Value: models.SettingValue(body.Value),
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&setting).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create setting failed"})
		return
	}
	if errRefresh := h.refreshSnapshot(c.Request.Context()); errRefresh != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh settings snapshot failed"})
		return
	}

	h.record(c, "setting.create", key)
	c.JSON(http.StatusCreated, formatSetting(&setting))
}

// List returns all settings sorted by key.
func (h *SettingHandler) List(c *gin.Context) {
	var rows []models.Setting
	if errFind := h.db.WithContext(c.Request.Context()).Order("key ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list settings failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatSetting(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"settings": out})
}

// Get returns a setting by key.
func (h *SettingHandler) Get(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key"})
		return
	}

	var setting models.Setting
	if errFind := h.db.WithContext(c.Request.Context()).Where("key = ?", key).First(&setting).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, formatSetting(&setting))
}

// updateSettingRequest captures the payload for updating a setting value.
type updateSettingRequest struct {
	Value json.RawMessage `json:"value"` // JSON value payload.
}

// Update replaces a setting's value, then refreshes the snapshot.
func (h *SettingHandler) Update(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key"})
		return
	}

	var body updateSettingRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if errValidate := validateSettingValue(key, body.Value); errValidate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errValidate.Error()})
		return
	}

	result := h.db.WithContext(c.Request.Context()).Model(&models.Setting{}).
		Where("key = ?", key).
		Update("value", models.SettingValue(body.Value))
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update setting failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if errRefresh := h.refreshSnapshot(c.Request.Context()); errRefresh != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh settings snapshot failed"})
		return
	}

	h.record(c, "setting.update", key)
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// Delete removes a setting, then refreshes the snapshot.
func (h *SettingHandler) Delete(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key"})
		return
	}

	result := h.db.WithContext(c.Request.Context()).Where("key = ?", key).Delete(&models.Setting{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete setting failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if errRefresh := h.refreshSnapshot(c.Request.Context()); errRefresh != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh settings snapshot failed"})
		return
	}

	h.record(c, "setting.delete", key)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *SettingHandler) refreshSnapshot(ctx context.Context) error {
	return internalsettings.Refresh(ctx, h.db)
}

func (h *SettingHandler) record(c *gin.Context, action, key string) {
	admin, ok := CurrentAdmin(c)
	if !ok {
		return
	}
	ip, agent := clientContext(c)
	h.audit.Record(c.Request.Context(), admin.ID, action, "setting", 0, gin.H{"key": key}, ip, agent)
}

// validateSettingValue enforces shape constraints for known numeric keys.
func validateSettingValue(key string, raw json.RawMessage) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return errors.New("value must be valid json")
	}
	if _, ok := nonNegativeNumberSettingKeys[key]; ok {
		var v float64
		if errParse := json.Unmarshal(trimmed, &v); errParse != nil {
			return errNonNegativeNumberValue
		}
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return errNonNegativeNumberValue
		}
	}
	return nil
}

// formatSetting shapes a setting record for API responses.
func formatSetting(setting *models.Setting) gin.H {
	return gin.H{
		"key":        setting.Key,
		"value":      json.RawMessage(setting.Value),
		"updated_at": setting.UpdatedAt,
	}
}
