package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Caqil/iprofit-admin-sub003/internal/audit"
	"github.com/Caqil/iprofit-admin-sub003/internal/models"
)

// PlanHandler manages investment plan configuration.
type PlanHandler struct {
	db    *gorm.DB        // Database handle for plans.
	audit *audit.Recorder // Audit trail for plan changes.
}

// NewPlanHandler constructs a plan handler.
func NewPlanHandler(db *gorm.DB, recorder *audit.Recorder) *PlanHandler {
	return &PlanHandler{db: db, audit: recorder}
}

// planRequest captures the plan create/update payload.
type planRequest struct {
	Name            string          `json:"name"`             // Plan name.
	Price           float64         `json:"price"`            // Purchase price.
	Currency        string          `json:"currency"`         // ISO currency code.
	Description     string          `json:"description"`      // Plan description.
	DepositLimit    float64         `json:"deposit_limit"`    // Max deposit per day.
	WithdrawalLimit float64         `json:"withdrawal_limit"` // Max withdrawal per day.
	ProfitLimit     float64         `json:"profit_limit"`     // Max daily profit.
	Features        json.RawMessage `json:"features"`         // Marketing feature list.
	SortOrder       int             `json:"sort_order"`       // Display ordering weight.
	IsDefault       bool            `json:"is_default"`       // Assigned to new signups.
}

func (r *planRequest) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	if r.Price < 0 || r.DepositLimit < 0 || r.WithdrawalLimit < 0 || r.ProfitLimit < 0 {
		return errors.New("amounts must be non-negative")
	}
	return nil
}

// List returns all plans ordered by sort weight.
func (h *PlanHandler) List(c *gin.Context) {
	var rows []models.Plan
	if errFind := h.db.WithContext(c.Request.Context()).
		Order("sort_order ASC, id ASC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list plans failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatPlan(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"plans": out})
}

// Get returns one plan.
func (h *PlanHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var plan models.Plan
	if errFind := h.db.WithContext(c.Request.Context()).First(&plan, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, formatPlan(&plan))
}

// Create inserts a new plan.
func (h *PlanHandler) Create(c *gin.Context) {
	var body planRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if errValidate := body.validate(); errValidate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errValidate.Error()})
		return
	}

	plan := models.Plan{
		Name:            strings.TrimSpace(body.Name),
		Price:           body.Price,
		Currency:        normalizeCurrency(body.Currency),
		Description:     body.Description,
		DepositLimit:    body.DepositLimit,
		WithdrawalLimit: body.WithdrawalLimit,
		ProfitLimit:     body.ProfitLimit,
		Features:        normalizeJSONArray(body.Features),
		SortOrder:       body.SortOrder,
		IsDefault:       body.IsDefault,
		IsEnabled:       true,
	}

	errCreate := h.db.WithContext(c.Request.Context()).Transaction(func(conn *gorm.DB) error {
		if plan.IsDefault {
			if errClear := conn.Model(&models.Plan{}).
				Where("is_default = ?", true).
				Update("is_default", false).Error; errClear != nil {
				return errClear
			}
		}
		return conn.Create(&plan).Error
	})
	if errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create plan failed"})
		return
	}

	h.record(c, "plan.create", plan.ID, gin.H{"name": plan.Name})
	c.JSON(http.StatusCreated, formatPlan(&plan))
}

// Update replaces a plan's configuration.
func (h *PlanHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var body planRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if errValidate := body.validate(); errValidate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errValidate.Error()})
		return
	}

	updates := map[string]any{
		"name":             strings.TrimSpace(body.Name),
		"price":            body.Price,
		"currency":         normalizeCurrency(body.Currency),
		"description":      body.Description,
		"deposit_limit":    body.DepositLimit,
		"withdrawal_limit": body.WithdrawalLimit,
		"profit_limit":     body.ProfitLimit,
		"features":         normalizeJSONArray(body.Features),
		"sort_order":       body.SortOrder,
		"is_default":       body.IsDefault,
	}

	errUpdate := h.db.WithContext(c.Request.Context()).Transaction(func(conn *gorm.DB) error {
		if body.IsDefault {
			if errClear := conn.Model(&models.Plan{}).
				Where("is_default = ? AND id <> ?", true, id).
				Update("is_default", false).Error; errClear != nil {
				return errClear
			}
		}
		result := conn.Model(&models.Plan{}).Where("id = ?", id).Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errUpdate != nil {
		if errors.Is(errUpdate, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update plan failed"})
		return
	}

	h.record(c, "plan.update", id, gin.H{"name": body.Name})
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// Delete removes a plan that no user is assigned to.
func (h *PlanHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var assigned int64
	if errCount := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("plan_id = ?", id).
		Count(&assigned).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if assigned > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "plan has assigned users"})
		return
	}

	result := h.db.WithContext(c.Request.Context()).Delete(&models.Plan{}, id)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete plan failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	h.record(c, "plan.delete", id, nil)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Enable makes a plan available again.
func (h *PlanHandler) Enable(c *gin.Context) {
	h.setEnabled(c, true)
}

// Disable hides a plan from new assignments.
func (h *PlanHandler) Disable(c *gin.Context) {
	h.setEnabled(c, false)
}

func (h *PlanHandler) setEnabled(c *gin.Context, enabled bool) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	result := h.db.WithContext(c.Request.Context()).Model(&models.Plan{}).
		Where("id = ?", id).
		Update("is_enabled", enabled)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update plan failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	action := "plan.disable"
	if enabled {
		action = "plan.enable"
	}
	h.record(c, action, id, nil)
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (h *PlanHandler) record(c *gin.Context, action string, entityID uint64, details any) {
	admin, ok := CurrentAdmin(c)
	if !ok {
		return
	}
	ip, agent := clientContext(c)
	h.audit.Record(c.Request.Context(), admin.ID, action, "plan", entityID, details, ip, agent)
}

// normalizeCurrency upper-cases a currency code, defaulting to USD.
func normalizeCurrency(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "USD"
	}
	return code
}

// normalizeJSONArray coerces a raw payload into a JSON array column value.
func normalizeJSONArray(raw json.RawMessage) datatypes.JSON {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || !json.Valid([]byte(trimmed)) {
		return datatypes.JSON([]byte("[]"))
	}
	return datatypes.JSON([]byte(trimmed))
}

// formatPlan shapes a plan record for API responses.
func formatPlan(plan *models.Plan) gin.H {
	return gin.H{
		"id":               plan.ID,
		"name":             plan.Name,
		"price":            plan.Price,
		"currency":         plan.Currency,
		"description":      plan.Description,
		"deposit_limit":    plan.DepositLimit,
		"withdrawal_limit": plan.WithdrawalLimit,
		"profit_limit":     plan.ProfitLimit,
		"features":         plan.Features,
		"sort_order":       plan.SortOrder,
		"is_default":       plan.IsDefault,
		"is_enabled":       plan.IsEnabled,
		"created_at":       plan.CreatedAt,
	}
}
