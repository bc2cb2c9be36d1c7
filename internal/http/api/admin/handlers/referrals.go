package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Caqil/iprofit-admin-sub003/internal/audit"
	"github.com/Caqil/iprofit-admin-sub003/internal/models"
	internalsettings "github.com/Caqil/iprofit-admin-sub003/internal/settings"
)

// ReferralHandler manages referral bonus review and payout.
type ReferralHandler struct {
	db    *gorm.DB        // Database handle for referrals.
	audit *audit.Recorder // Audit trail for payout decisions.
}

// NewReferralHandler constructs a referral handler.
func NewReferralHandler(db *gorm.DB, recorder *audit.Recorder) *ReferralHandler {
	return &ReferralHandler{db: db, audit: recorder}
}

// List returns referrals filtered by status and referrer.
func (h *ReferralHandler) List(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).Model(&models.Referral{})

	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, errParse := strconv.Atoi(raw)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		query = query.Where("status = ?", status)
	}
	if raw := strings.TrimSpace(c.Query("referrer_id")); raw != "" {
		referrerID, errParse := strconv.ParseUint(raw, 10, 64)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid referrer_id"})
			return
		}
		query = query.Where("referrer_id = ?", referrerID)
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count referrals failed"})
		return
	}

	offset, limit := parsePagination(c)
	var rows []models.Referral
	if errFind := query.Order("id DESC").Offset(offset).Limit(limit).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list referrals failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatReferral(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"referrals": out, "total": total})
}

// Summary returns payout totals and the configured bonus defaults.
func (h *ReferralHandler) Summary(c *gin.Context) {
	type statusRow struct {
		Status models.ReferralStatus
		Count  int64
		Total  float64
	}
	var byStatus []statusRow
	if errQuery := h.db.WithContext(c.Request.Context()).Model(&models.Referral{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(bonus_amount), 0) AS total").
		Group("status").
		Scan(&byStatus).Error; errQuery != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "summarize referrals failed"})
		return
	}

	summary := gin.H{
		"pending":   gin.H{"count": 0, "total": 0.0},
		"paid":      gin.H{"count": 0, "total": 0.0},
		"cancelled": gin.H{"count": 0, "total": 0.0},
	}
	for _, row := range byStatus {
		entry := gin.H{"count": row.Count, "total": row.Total}
		switch row.Status {
		case models.ReferralStatusPending:
			summary["pending"] = entry
		case models.ReferralStatusPaid:
			summary["paid"] = entry
		case models.ReferralStatusCancelled:
			summary["cancelled"] = entry
		}
	}

	defaults := gin.H{
		"bonus_amount": internalsettings.DefaultReferralBonus,
		"profit_share": internalsettings.DefaultReferralProfitShare,
	}
	if raw, ok := internalsettings.DBConfigValue(internalsettings.ReferralBonusKey); ok {
		var v float64
		if errParse := json.Unmarshal(raw, &v); errParse == nil {
			defaults["bonus_amount"] = v
		}
	}
	if raw, ok := internalsettings.DBConfigValue(internalsettings.ReferralProfitShareKey); ok {
		var v float64
		if errParse := json.Unmarshal(raw, &v); errParse == nil {
			defaults["profit_share"] = v
		}
	}

	c.JSON(http.StatusOK, gin.H{"summary": summary, "defaults": defaults})
}

// Pay credits a pending bonus to the referrer's wallet and marks the
// referral paid, in one database transaction.
func (h *ReferralHandler) Pay(c *gin.Context) {
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

	now := time.Now().UTC()
	var paid models.Referral
	errPay := h.db.WithContext(c.Request.Context()).Transaction(func(conn *gorm.DB) error {
		var referral models.Referral
		if errFind := conn.First(&referral, id).Error; errFind != nil {
			return errFind
		}
		if referral.Status != models.ReferralStatusPending {
			return errReferralNotPending
		}

		if referral.BonusAmount > 0 {
			bonus := models.Transaction{
				Reference:  uuid.NewString(),
				UserID:     referral.ReferrerID,
				Type:       models.TransactionTypeBonus,
				Amount:     referral.BonusAmount,
				Status:     models.TransactionStatusApproved,
				Remark:     "referral bonus",
				ReviewedBy: &admin.ID,
				ReviewedAt: &now,
			}
			if errCreate := conn.Create(&bonus).Error; errCreate != nil {
				return errCreate
			}
			if errCredit := conn.Model(&models.User{}).
				Where("id = ?", referral.ReferrerID).
				Update("balance", gorm.Expr("balance + ?", referral.BonusAmount)).Error; errCredit != nil {
				return errCredit
			}
		}

		referral.Status = models.ReferralStatusPaid
		referral.PaidAt = &now
		if errSave := conn.Model(&models.Referral{}).
			Where("id = ?", referral.ID).
			Updates(map[string]any{"status": referral.Status, "paid_at": referral.PaidAt}).Error; errSave != nil {
			return errSave
		}
		paid = referral
		return nil
	})
	if errPay != nil {
		switch {
		case errors.Is(errPay, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		case errors.Is(errPay, errReferralNotPending):
			c.JSON(http.StatusConflict, gin.H{"error": errReferralNotPending.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "pay referral failed"})
		}
		return
	}

	ip, agent := clientContext(c)
	h.audit.Record(c.Request.Context(), admin.ID, "referral.pay", "referral", id,
		gin.H{"referrer_id": paid.ReferrerID, "bonus": paid.BonusAmount}, ip, agent)
	c.JSON(http.StatusOK, formatReferral(&paid))
}

var errReferralNotPending = errors.New("referral is not pending")

// Cancel voids a pending bonus without paying it.
func (h *ReferralHandler) Cancel(c *gin.Context) {
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

	result := h.db.WithContext(c.Request.Context()).Model(&models.Referral{}).
		Where("id = ? AND status = ?", id, models.ReferralStatusPending).
		Update("status", models.ReferralStatusCancelled)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cancel referral failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": errReferralNotPending.Error()})
		return
	}

	ip, agent := clientContext(c)
	h.audit.Record(c.Request.Context(), admin.ID, "referral.cancel", "referral", id, nil, ip, agent)
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// formatReferral shapes a referral record for API responses.
func formatReferral(referral *models.Referral) gin.H {
	return gin.H{
		"id":           referral.ID,
		"referrer_id":  referral.ReferrerID,
		"referred_id":  referral.ReferredID,
		"bonus_amount": referral.BonusAmount,
		"profit_share": referral.ProfitShare,
		"status":       int(referral.Status),
		"paid_at":      referral.PaidAt,
		"created_at":   referral.CreatedAt,
	}
}
