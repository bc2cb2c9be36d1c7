package handlers

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Caqil/iprofit-admin-sub003/internal/audit"
	"github.com/Caqil/iprofit-admin-sub003/internal/models"
)

// LoanHandler manages loan applications, disbursement and repayments.
type LoanHandler struct {
	db    *gorm.DB        // Database handle for loans.
	audit *audit.Recorder // Audit trail for loan decisions.
}

// NewLoanHandler constructs a loan handler.
func NewLoanHandler(db *gorm.DB, recorder *audit.Recorder) *LoanHandler {
	return &LoanHandler{db: db, audit: recorder}
}

// scheduleEntry is one installment in a loan repayment schedule.
type scheduleEntry struct {
	Installment int       `json:"installment"` // 1-based installment number.
	DueDate     time.Time `json:"due_date"`    // Installment due date.
	Principal   float64   `json:"principal"`   // Principal component.
	Interest    float64   `json:"interest"`    // Interest component.
	Total       float64   `json:"total"`       // Installment amount.
	Balance     float64   `json:"balance"`     // Outstanding principal after payment.
}

// List returns loans filtered by status and user.
func (h *LoanHandler) List(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).Model(&models.Loan{})

	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, errParse := strconv.Atoi(raw)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		query = query.Where("status = ?", status)
	}
	if raw := strings.TrimSpace(c.Query("user_id")); raw != "" {
		userID, errParse := strconv.ParseUint(raw, 10, 64)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
			return
		}
		query = query.Where("user_id = ?", userID)
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count loans failed"})
		return
	}

	offset, limit := parsePagination(c)
	var rows []models.Loan
	if errFind := query.Order("id DESC").Offset(offset).Limit(limit).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list loans failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatLoan(&rows[i], false))
	}
	c.JSON(http.StatusOK, gin.H{"loans": out, "total": total})
}

// Get returns one loan with its installment schedule.
func (h *LoanHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var loan models.Loan
	if errFind := h.db.WithContext(c.Request.Context()).First(&loan, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, formatLoan(&loan, true))
}

// reviewLoanRequest captures an application decision payload.
type reviewLoanRequest struct {
	Remark string `json:"remark"` // Reviewer note, required on rejection.
}

// Approve accepts a pending application, computes the installment plan and
// disburses the principal to the borrower's wallet in one database
// transaction. The loan becomes active immediately.
func (h *LoanHandler) Approve(c *gin.Context) {
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

	var body reviewLoanRequest
	if c.Request.ContentLength > 0 {
		if errBind := c.ShouldBindJSON(&body); errBind != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}

	now := time.Now().UTC()
	var approved models.Loan
	errApprove := h.db.WithContext(c.Request.Context()).Transaction(func(conn *gorm.DB) error {
		var loan models.Loan
		if errFind := conn.First(&loan, id).Error; errFind != nil {
			return errFind
		}
		if loan.Status != models.LoanStatusPending {
			return errLoanNotPending
		}

		emi := calculateEMI(loan.Amount, loan.InterestRate, loan.TenureMonths)
		schedule := buildSchedule(loan.Amount, loan.InterestRate, loan.TenureMonths, now)
		raw, errMarshal := json.Marshal(schedule)
		if errMarshal != nil {
			return errMarshal
		}

		disbursement := models.Transaction{
			Reference:  uuid.NewString(),
			UserID:     loan.UserID,
			Type:       models.TransactionTypeLoanDisbursement,
			Amount:     loan.Amount,
			Status:     models.TransactionStatusApproved,
			Remark:     "loan disbursement",
			ReviewedBy: &admin.ID,
			ReviewedAt: &now,
		}
		if errCreate := conn.Create(&disbursement).Error; errCreate != nil {
			return errCreate
		}
		if errCredit := conn.Model(&models.User{}).
			Where("id = ?", loan.UserID).
			Update("balance", gorm.Expr("balance + ?", loan.Amount)).Error; errCredit != nil {
			return errCredit
		}

		loan.Status = models.LoanStatusActive
		loan.EMIAmount = emi
		loan.Schedule = datatypes.JSON(raw)
		loan.Remark = strings.TrimSpace(body.Remark)
		loan.ApprovedBy = &admin.ID
		loan.ApprovedAt = &now
		loan.DisbursedAt = &now
		if errSave := conn.Model(&models.Loan{}).
			Where("id = ?", loan.ID).
			Updates(map[string]any{
				"status":       loan.Status,
				"emi_amount":   loan.EMIAmount,
				"schedule":     loan.Schedule,
				"remark":       loan.Remark,
				"approved_by":  loan.ApprovedBy,
				"approved_at":  loan.ApprovedAt,
				"disbursed_at": loan.DisbursedAt,
			}).Error; errSave != nil {
			return errSave
		}
		approved = loan
		return nil
	})
	if errApprove != nil {
		switch {
		case errors.Is(errApprove, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		case errors.Is(errApprove, errLoanNotPending):
			c.JSON(http.StatusConflict, gin.H{"error": errLoanNotPending.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "approve loan failed"})
		}
		return
	}

	ip, agent := clientContext(c)
	h.audit.Record(c.Request.Context(), admin.ID, "loan.approve", "loan", id,
		gin.H{"amount": approved.Amount, "emi": approved.EMIAmount}, ip, agent)
	c.JSON(http.StatusOK, formatLoan(&approved, true))
}

var errLoanNotPending = errors.New("loan is not pending review")

// Reject refuses a pending application.
func (h *LoanHandler) Reject(c *gin.Context) {
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

	var body reviewLoanRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	remark := strings.TrimSpace(body.Remark)
	if remark == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "remark is required on rejection"})
		return
	}

	result := h.db.WithContext(c.Request.Context()).Model(&models.Loan{}).
		Where("id = ? AND status = ?", id, models.LoanStatusPending).
		Updates(map[string]any{"status": models.LoanStatusRejected, "remark": remark})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reject loan failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": errLoanNotPending.Error()})
		return
	}

	ip, agent := clientContext(c)
	h.audit.Record(c.Request.Context(), admin.ID, "loan.reject", "loan", id, gin.H{"remark": remark}, ip, agent)
	c.JSON(http.StatusOK, gin.H{"status": "rejected"})
}

// repaymentRequest captures a recorded installment payment.
type repaymentRequest struct {
	Amount float64 `json:"amount"` // Payment amount, positive.
	Remark string  `json:"remark"` // Optional note.
}

// RecordRepayment books an installment payment against an active loan,
// debiting the borrower's wallet. The loan completes once the repaid sum
// covers the full installment plan.
func (h *LoanHandler) RecordRepayment(c *gin.Context) {
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

	var body repaymentRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		return
	}

	now := time.Now().UTC()
	var updated models.Loan
	errRepay := h.db.WithContext(c.Request.Context()).Transaction(func(conn *gorm.DB) error {
		var loan models.Loan
		if errFind := conn.First(&loan, id).Error; errFind != nil {
			return errFind
		}
		if loan.Status != models.LoanStatusActive {
			return errLoanNotActive
		}

		debitResult := conn.Model(&models.User{}).
			Where("id = ? AND balance >= ?", loan.UserID, body.Amount).
			Update("balance", gorm.Expr("balance - ?", body.Amount))
		if debitResult.Error != nil {
			return debitResult.Error
		}
		if debitResult.RowsAffected == 0 {
			return errInsufficientBalance
		}

		repayment := models.Transaction{
			Reference:  uuid.NewString(),
			UserID:     loan.UserID,
			Type:       models.TransactionTypeLoanRepayment,
			Amount:     body.Amount,
			Status:     models.TransactionStatusApproved,
			Remark:     strings.TrimSpace(body.Remark),
			ReviewedBy: &admin.ID,
			ReviewedAt: &now,
		}
		if errCreate := conn.Create(&repayment).Error; errCreate != nil {
			return errCreate
		}

		loan.RepaidAmount += body.Amount
		totalDue := loan.EMIAmount * float64(loan.TenureMonths)
		updates := map[string]any{"repaid_amount": loan.RepaidAmount}
		if loan.RepaidAmount >= totalDue-repaymentEpsilon {
			loan.Status = models.LoanStatusCompleted
			loan.CompletedAt = &now
			updates["status"] = loan.Status
			updates["completed_at"] = loan.CompletedAt
		}
		if errSave := conn.Model(&models.Loan{}).
			Where("id = ?", loan.ID).
			Updates(updates).Error; errSave != nil {
			return errSave
		}
		updated = loan
		return nil
	})
	if errRepay != nil {
		switch {
		case errors.Is(errRepay, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		case errors.Is(errRepay, errLoanNotActive):
			c.JSON(http.StatusConflict, gin.H{"error": errLoanNotActive.Error()})
		case errors.Is(errRepay, errInsufficientBalance):
			c.JSON(http.StatusConflict, gin.H{"error": errInsufficientBalance.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "record repayment failed"})
		}
		return
	}

	ip, agent := clientContext(c)
	h.audit.Record(c.Request.Context(), admin.ID, "loan.repayment", "loan", id,
		gin.H{"amount": body.Amount}, ip, agent)
	c.JSON(http.StatusOK, formatLoan(&updated, false))
}

var errLoanNotActive = errors.New("loan is not active")

// repaymentEpsilon absorbs float drift when comparing the repaid sum to
// the installment total.
const repaymentEpsilon = 0.01

// CalculateEMI returns the installment amount and schedule for the given
// terms without touching any loan record.
func (h *LoanHandler) CalculateEMI(c *gin.Context) {
	amount, errAmount := strconv.ParseFloat(strings.TrimSpace(c.Query("amount")), 64)
	rate, errRate := strconv.ParseFloat(strings.TrimSpace(c.Query("interest_rate")), 64)
	tenure, errTenure := strconv.Atoi(strings.TrimSpace(c.Query("tenure_months")))
	if errAmount != nil || errRate != nil || errTenure != nil ||
		amount <= 0 || rate < 0 || tenure <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount, interest_rate and tenure_months are required"})
		return
	}

	emi := calculateEMI(amount, rate, tenure)
	schedule := buildSchedule(amount, rate, tenure, time.Now().UTC())
	c.JSON(http.StatusOK, gin.H{
		"emi":      emi,
		"total":    roundMoney(emi * float64(tenure)),
		"schedule": schedule,
	})
}

// calculateEMI computes the fixed monthly installment for a principal at
// an annual percentage rate over the given tenure.
func calculateEMI(principal, annualRatePercent float64, tenureMonths int) float64 {
	if tenureMonths <= 0 {
		return 0
	}
	monthlyRate := annualRatePercent / 12 / 100
	if monthlyRate == 0 {
		return roundMoney(principal / float64(tenureMonths))
	}
	factor := math.Pow(1+monthlyRate, float64(tenureMonths))
	return roundMoney(principal * monthlyRate * factor / (factor - 1))
}

// buildSchedule amortizes the principal into monthly installments starting
// one month after the given date.
func buildSchedule(principal, annualRatePercent float64, tenureMonths int, from time.Time) []scheduleEntry {
	emi := calculateEMI(principal, annualRatePercent, tenureMonths)
	monthlyRate := annualRatePercent / 12 / 100

	entries := make([]scheduleEntry, 0, tenureMonths)
	balance := principal
	for i := 1; i <= tenureMonths; i++ {
		interest := roundMoney(balance * monthlyRate)
		principalPart := roundMoney(emi - interest)
		if i == tenureMonths || principalPart > balance {
			// Final installment clears the remaining balance exactly.
			principalPart = roundMoney(balance)
		}
		balance = roundMoney(balance - principalPart)
		entries = append(entries, scheduleEntry{
			Installment: i,
			DueDate:     from.AddDate(0, i, 0),
			Principal:   principalPart,
			Interest:    interest,
			Total:       roundMoney(principalPart + interest),
			Balance:     balance,
		})
	}
	return entries
}

// roundMoney rounds to two decimal places.
func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// formatLoan shapes a loan record for API responses.
func formatLoan(loan *models.Loan, includeSchedule bool) gin.H {
	out := gin.H{
		"id":            loan.ID,
		"user_id":       loan.UserID,
		"amount":        loan.Amount,
		"interest_rate": loan.InterestRate,
		"tenure_months": loan.TenureMonths,
		"emi_amount":    loan.EMIAmount,
		"purpose":       loan.Purpose,
		"credit_score":  loan.CreditScore,
		"status":        int(loan.Status),
		"remark":        loan.Remark,
		"repaid_amount": loan.RepaidAmount,
		"approved_by":   loan.ApprovedBy,
		"approved_at":   loan.ApprovedAt,
		"disbursed_at":  loan.DisbursedAt,
		"completed_at":  loan.CompletedAt,
		"created_at":    loan.CreatedAt,
	}
	if includeSchedule {
		out["schedule"] = loan.Schedule
	}
	return out
}
