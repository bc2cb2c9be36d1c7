package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Caqil/iprofit-admin-sub003/internal/audit"
	dbutil "github.com/Caqil/iprofit-admin-sub003/internal/db"
	"github.com/Caqil/iprofit-admin-sub003/internal/models"
)

// UserHandler manages end-user accounts and KYC review.
type UserHandler struct {
	db    *gorm.DB        // Database handle for user records.
	audit *audit.Recorder // Audit trail for user mutations.
}

// NewUserHandler constructs a user handler.
func NewUserHandler(db *gorm.DB, recorder *audit.Recorder) *UserHandler {
	return &UserHandler{db: db, audit: recorder}
}

// List returns users filtered by search text, KYC state and active flag.
func (h *UserHandler) List(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).Model(&models.User{})

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+search+"%")
		like := dbutil.CaseInsensitiveLikeExpr(h.db, "username") + " OR " +
			dbutil.CaseInsensitiveLikeExpr(h.db, "email") + " OR " +
			dbutil.CaseInsensitiveLikeExpr(h.db, "phone")
		query = query.Where(like, pattern, pattern, pattern)
	}
	if raw := strings.TrimSpace(c.Query("kyc_status")); raw != "" {
		status, errParse := strconv.Atoi(raw)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid kyc_status"})
			return
		}
		query = query.Where("kyc_status = ?", status)
	}
	if raw := strings.TrimSpace(c.Query("active")); raw != "" {
		active, errParse := strconv.ParseBool(raw)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid active flag"})
			return
		}
		query = query.Where("active = ?", active)
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count users failed"})
		return
	}

	offset, limit := parsePagination(c)
	var rows []models.User
	if errFind := query.Order("id DESC").Offset(offset).Limit(limit).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list users failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatUser(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"users": out, "total": total})
}

// Get returns one user with their plan preloaded.
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).Preload("Plan").First(&user, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	out := formatUser(&user)
	if user.Plan != nil {
		out["plan"] = gin.H{"id": user.Plan.ID, "name": user.Plan.Name}
	}
	out["kyc_documents"] = user.KYCDocuments
	c.JSON(http.StatusOK, out)
}

// updateUserRequest captures the mutable user profile fields.
type updateUserRequest struct {
	Name     *string `json:"name"`      // Display name.
	Email    *string `json:"email"`     // Email address.
	Phone    *string `json:"phone"`     // Phone number.
	PlanID   *uint64 `json:"plan_id"`   // Active plan, 0 clears the assignment.
	DeviceID *string `json:"device_id"` // Registered device, empty clears the binding.
}

// Update applies profile changes to a user.
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var body updateUserRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{}
	if body.Name != nil {
		updates["name"] = strings.TrimSpace(*body.Name)
	}
	if body.Email != nil {
		updates["email"] = strings.TrimSpace(*body.Email)
	}
	if body.Phone != nil {
		updates["phone"] = strings.TrimSpace(*body.Phone)
	}
	if body.DeviceID != nil {
		updates["device_id"] = strings.TrimSpace(*body.DeviceID)
	}
	if body.PlanID != nil {
		if *body.PlanID == 0 {
			updates["plan_id"] = nil
		} else {
			var plan models.Plan
			if errFind := h.db.WithContext(c.Request.Context()).First(&plan, *body.PlanID).Error; errFind != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown plan"})
				return
			}
			updates["plan_id"] = *body.PlanID
		}
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}

	result := h.db.WithContext(c.Request.Context()).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already in use"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update user failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	h.record(c, "user.update", id, updates)
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// Delete removes a user account.
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	result := h.db.WithContext(c.Request.Context()).Delete(&models.User{}, id)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete user failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	h.record(c, "user.delete", id, nil)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Enable re-activates a user account.
func (h *UserHandler) Enable(c *gin.Context) {
	h.setActive(c, true)
}

// Disable blocks a user account from signing in.
func (h *UserHandler) Disable(c *gin.Context) {
	h.setActive(c, false)
}

func (h *UserHandler) setActive(c *gin.Context, active bool) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	result := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"active": active, "disabled": !active})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update user failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	action := "user.disable"
	if active {
		action = "user.enable"
	}
	h.record(c, action, id, nil)
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// kycReviewRequest captures the KYC decision payload.
type kycReviewRequest struct {
	Remark string `json:"remark"` // Note shown to the user, required on rejection.
}

// KYCApprove marks a user's pending documents as verified.
func (h *UserHandler) KYCApprove(c *gin.Context) {
	h.reviewKYC(c, models.KYCStatusApproved)
}

// KYCReject refuses a user's pending documents with a remark.
func (h *UserHandler) KYCReject(c *gin.Context) {
	h.reviewKYC(c, models.KYCStatusRejected)
}

func (h *UserHandler) reviewKYC(c *gin.Context, decision models.KYCStatus) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	admin, ok := CurrentAdmin(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	// Approvals may arrive with no body; rejections carry a remark.
	var body kycReviewRequest
	if c.Request.ContentLength > 0 {
		if errBind := c.ShouldBindJSON(&body); errBind != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	remark := strings.TrimSpace(body.Remark)
	if decision == models.KYCStatusRejected && remark == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "remark is required on rejection"})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if user.KYCStatus != models.KYCStatusPending {
		c.JSON(http.StatusConflict, gin.H{"error": "no pending documents to review"})
		return
	}

	now := time.Now().UTC()
	if errSave := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"kyc_status":      decision,
			"kyc_reviewed_by": admin.ID,
			"kyc_reviewed_at": now,
			"kyc_remark":      remark,
		}).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update kyc state failed"})
		return
	}

	action := "user.kyc_approve"
	if decision == models.KYCStatusRejected {
		action = "user.kyc_reject"
	}
	h.record(c, action, id, gin.H{"remark": remark})
	c.JSON(http.StatusOK, gin.H{"status": "reviewed"})
}

// bulkActionRequest captures a bulk user mutation.
type bulkActionRequest struct {
	Action string   `json:"action"` // One of enable, disable, delete.
	IDs    []uint64 `json:"ids"`    // Target user IDs.
}

// BulkAction applies enable, disable or delete to a set of users.
func (h *UserHandler) BulkAction(c *gin.Context) {
	var body bulkActionRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(body.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids are required"})
		return
	}

	var result *gorm.DB
	switch strings.TrimSpace(body.Action) {
	case "enable":
		result = h.db.WithContext(c.Request.Context()).Model(&models.User{}).
			Where("id IN ?", body.IDs).
			Updates(map[string]any{"active": true, "disabled": false})
	case "disable":
		result = h.db.WithContext(c.Request.Context()).Model(&models.User{}).
			Where("id IN ?", body.IDs).
			Updates(map[string]any{"active": false, "disabled": true})
	case "delete":
		result = h.db.WithContext(c.Request.Context()).Delete(&models.User{}, body.IDs)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
		return
	}
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "bulk action failed"})
		return
	}

	h.record(c, "user.bulk_"+body.Action, 0, gin.H{"ids": body.IDs})
	c.JSON(http.StatusOK, gin.H{"status": "applied", "affected": result.RowsAffected})
}

// Transactions returns one user's wallet movements, newest first.
func (h *UserHandler) Transactions(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	offset, limit := parsePagination(c)
	var rows []models.Transaction
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", id).
		Order("id DESC").Offset(offset).Limit(limit).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list transactions failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatTransaction(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"transactions": out})
}

func (h *UserHandler) record(c *gin.Context, action string, entityID uint64, details any) {
	admin, ok := CurrentAdmin(c)
	if !ok {
		return
	}
	ip, agent := clientContext(c)
	h.audit.Record(c.Request.Context(), admin.ID, action, "user", entityID, details, ip, agent)
}

// formatUser shapes a user record for list and detail responses.
func formatUser(user *models.User) gin.H {
	return gin.H{
		"id":            user.ID,
		"username":      user.Username,
		"name":          user.Name,
		"email":         user.Email,
		"phone":         user.Phone,
		"plan_id":       user.PlanID,
		"balance":       user.Balance,
		"referral_code": user.ReferralCode,
		"referred_by":   user.ReferredBy,
		"kyc_status":    int(user.KYCStatus),
		"kyc_remark":    user.KYCRemark,
		"device_id":     user.DeviceID,
		"active":        user.Active,
		"created_at":    user.CreatedAt,
	}
}
