package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Caqil/iprofit-admin-sub003/internal/models"
)

// DashboardHandler aggregates platform metrics for the overview screens.
type DashboardHandler struct {
	db *gorm.DB // Database handle for aggregations.
}

// NewDashboardHandler constructs a dashboard handler.
func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{db: db}
}

// Metrics returns headline counts and totals for the overview page.
func (h *DashboardHandler) Metrics(c *gin.Context) {
	ctx := c.Request.Context()

	var userTotal, userActive, kycPending int64
	if errCount := h.db.WithContext(ctx).Model(&models.User{}).Count(&userTotal).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "aggregate users failed"})
		return
	}
	if errCount := h.db.WithContext(ctx).Model(&models.User{}).
		Where("active = ?", true).Count(&userActive).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "aggregate users failed"})
		return
	}
	if errCount := h.db.WithContext(ctx).Model(&models.User{}).
		Where("kyc_status = ?", models.KYCStatusPending).Count(&kycPending).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "aggregate users failed"})
		return
	}

	type moneyRow struct {
		Count int64
		Total float64
	}
	sumByTypeStatus := func(kind models.TransactionType, status models.TransactionStatus) (moneyRow, error) {
		var row moneyRow
		err := h.db.WithContext(ctx).Model(&models.Transaction{}).
			Select("COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total").
			Where("type = ? AND status = ?", kind, status).
			Scan(&row).Error
		return row, err
	}

	depositsPending, errDeposits := sumByTypeStatus(models.TransactionTypeDeposit, models.TransactionStatusPending)
	if errDeposits != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "aggregate transactions failed"})
		return
	}
	depositsApproved, errApproved := sumByTypeStatus(models.TransactionTypeDeposit, models.TransactionStatusApproved)
	if errApproved != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "aggregate transactions failed"})
		return
	}
	withdrawalsPending, errWithdrawals := sumByTypeStatus(models.TransactionTypeWithdrawal, models.TransactionStatusPending)
	if errWithdrawals != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "aggregate transactions failed"})
		return
	}

	var loansPending, loansActive int64
	if errCount := h.db.WithContext(ctx).Model(&models.Loan{}).
		Where("status = ?", models.LoanStatusPending).Count(&loansPending).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "aggregate loans failed"})
		return
	}
	if errCount := h.db.WithContext(ctx).Model(&models.Loan{}).
		Where("status = ?", models.LoanStatusActive).Count(&loansActive).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "aggregate loans failed"})
		return
	}

	var ticketsOpen, submissionsPending int64
	if errCount := h.db.WithContext(ctx).Model(&models.SupportTicket{}).
		Where("status = ?", models.TicketStatusOpen).Count(&ticketsOpen).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "aggregate tickets failed"})
		return
	}
	if errCount := h.db.WithContext(ctx).Model(&models.TaskSubmission{}).
		Where("status = ?", models.SubmissionStatusPending).Count(&submissionsPending).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "aggregate submissions failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users": gin.H{
			"total":       userTotal,
			"active":      userActive,
			"kyc_pending": kycPending,
		},
		"deposits": gin.H{
			"pending_count":  depositsPending.Count,
			"pending_total":  depositsPending.Total,
			"approved_total": depositsApproved.Total,
		},
		"withdrawals": gin.H{
			"pending_count": withdrawalsPending.Count,
			"pending_total": withdrawalsPending.Total,
		},
		"loans": gin.H{
			"pending": loansPending,
			"active":  loansActive,
		},
		"tickets_open":        ticketsOpen,
		"submissions_pending": submissionsPending,
	})
}

// Charts returns daily signup and settled-volume series for the last N days
// (default 30, capped at 365).
func (h *DashboardHandler) Charts(c *gin.Context) {
	days := 30
	if raw := strings.TrimSpace(c.Query("days")); raw != "" {
		if parsed, errParse := strconv.Atoi(raw); errParse == nil && parsed > 0 {
			days = parsed
		}
	}
	if days > 365 {
		days = 365
	}
	since := time.Now().UTC().AddDate(0, 0, -days).Truncate(24 * time.Hour)

	type signupRow struct {
		CreatedAt time.Time
	}
	var signups []signupRow
	if errFind := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Select("created_at").
		Where("created_at >= ?", since).
		Find(&signups).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load signups failed"})
		return
	}

	type volumeRow struct {
		CreatedAt time.Time
		Type      models.TransactionType
		Amount    float64
	}
	var volumes []volumeRow
	if errFind := h.db.WithContext(c.Request.Context()).Model(&models.Transaction{}).
		Select("created_at, type, amount").
		Where("created_at >= ? AND status = ?", since, models.TransactionStatusApproved).
		Find(&volumes).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load volumes failed"})
		return
	}

	// Bucketing by day in Go keeps the query portable across dialects.
	signupSeries := map[string]int{}
	for _, row := range signups {
		signupSeries[row.CreatedAt.UTC().Format("2006-01-02")]++
	}
	depositSeries := map[string]float64{}
	withdrawalSeries := map[string]float64{}
	for _, row := range volumes {
		day := row.CreatedAt.UTC().Format("2006-01-02")
		switch row.Type {
		case models.TransactionTypeDeposit:
			depositSeries[day] += row.Amount
		case models.TransactionTypeWithdrawal:
			withdrawalSeries[day] += row.Amount
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"since":       since,
		"signups":     signupSeries,
		"deposits":    depositSeries,
		"withdrawals": withdrawalSeries,
	})
}
