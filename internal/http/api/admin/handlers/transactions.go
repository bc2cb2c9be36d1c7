package handlers

import (
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
)

// TransactionHandler manages wallet movement review and settlement.
type TransactionHandler struct {
	db    *gorm.DB        // Database handle for transactions.
	audit *audit.Recorder // Audit trail for settlement decisions.
}

// NewTransactionHandler constructs a transaction handler.
func NewTransactionHandler(db *gorm.DB, recorder *audit.Recorder) *TransactionHandler {
	return &TransactionHandler{db: db, audit: recorder}
}

var errInsufficientBalance = errors.New("insufficient balance")

// List returns transactions filtered by type, status, user and reference.
func (h *TransactionHandler) List(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).Model(&models.Transaction{})

	if raw := strings.TrimSpace(c.Query("type")); raw != "" {
		kind, errParse := strconv.Atoi(raw)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid type"})
			return
		}
		query = query.Where("type = ?", kind)
	}
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
	if reference := strings.TrimSpace(c.Query("reference")); reference != "" {
		query = query.Where("reference = ?", reference)
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count transactions failed"})
		return
	}

	offset, limit := parsePagination(c)
	var rows []models.Transaction
	if errFind := query.Order("id DESC").Offset(offset).Limit(limit).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list transactions failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatTransaction(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"transactions": out, "total": total})
}

// Get returns one transaction.
func (h *TransactionHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var tx models.Transaction
	if errFind := h.db.WithContext(c.Request.Context()).First(&tx, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, formatTransaction(&tx))
}

// createAdjustmentRequest captures a manual wallet adjustment.
type createAdjustmentRequest struct {
	UserID uint64  `json:"user_id"` // Target user.
	Type   int     `json:"type"`    // Movement category, deposit or bonus.
	Amount float64 `json:"amount"`  // Movement amount, positive.
	Remark string  `json:"remark"`  // Reason recorded on the row.
}

// CreateAdjustment books a manual credit as a pre-approved transaction and
// applies it to the user's balance in one database transaction.
func (h *TransactionHandler) CreateAdjustment(c *gin.Context) {
	admin, ok := CurrentAdmin(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body createAdjustmentRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		return
	}
	kind := models.TransactionType(body.Type)
	if kind != models.TransactionTypeDeposit && kind != models.TransactionTypeBonus {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be deposit or bonus"})
		return
	}

	now := time.Now().UTC()
	tx := models.Transaction{
		Reference:  uuid.NewString(),
		UserID:     body.UserID,
		Type:       kind,
		Amount:     body.Amount,
		Status:     models.TransactionStatusApproved,
		Remark:     strings.TrimSpace(body.Remark),
		ReviewedBy: &admin.ID,
		ReviewedAt: &now,
	}

	errCreate := h.db.WithContext(c.Request.Context()).Transaction(func(conn *gorm.DB) error {
		result := conn.Model(&models.User{}).
			Where("id = ?", body.UserID).
			Update("balance", gorm.Expr("balance + ?", body.Amount))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return conn.Create(&tx).Error
	})
	if errCreate != nil {
		if errors.Is(errCreate, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown user"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create adjustment failed"})
		return
	}

	ip, agent := clientContext(c)
	h.audit.Record(c.Request.Context(), admin.ID, "transaction.adjust", "transaction", tx.ID,
		gin.H{"user_id": body.UserID, "amount": body.Amount, "type": body.Type}, ip, agent)
	c.JSON(http.StatusCreated, formatTransaction(&tx))
}

// reviewTransactionRequest captures a settlement decision payload.
type reviewTransactionRequest struct {
	Remark string `json:"remark"` // Reviewer note, required on rejection.
}

// Approve settles a pending transaction and applies its balance effect.
// Deposits and bonuses credit amount minus fee; withdrawals debit amount
// plus fee and fail when the wallet cannot cover it.
func (h *TransactionHandler) Approve(c *gin.Context) {
	h.review(c, models.TransactionStatusApproved)
}

// Reject refuses a pending transaction without touching the balance.
func (h *TransactionHandler) Reject(c *gin.Context) {
	h.review(c, models.TransactionStatusRejected)
}

func (h *TransactionHandler) review(c *gin.Context, decision models.TransactionStatus) {
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

	var body reviewTransactionRequest
	if c.Request.ContentLength > 0 {
		if errBind := c.ShouldBindJSON(&body); errBind != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	remark := strings.TrimSpace(body.Remark)
	if decision == models.TransactionStatusRejected && remark == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "remark is required on rejection"})
		return
	}

	now := time.Now().UTC()
	var reviewed models.Transaction
	errReview := h.db.WithContext(c.Request.Context()).Transaction(func(conn *gorm.DB) error {
		var tx models.Transaction
		if errFind := conn.First(&tx, id).Error; errFind != nil {
			return errFind
		}
		if tx.Status != models.TransactionStatusPending {
			return errAlreadySettled
		}

		if decision == models.TransactionStatusApproved {
			if errApply := applyBalanceEffect(conn, &tx); errApply != nil {
				return errApply
			}
		}

		tx.Status = decision
		tx.Remark = remark
		tx.ReviewedBy = &admin.ID
		tx.ReviewedAt = &now
		if errSave := conn.Model(&models.Transaction{}).
			Where("id = ?", tx.ID).
			Updates(map[string]any{
				"status":      tx.Status,
				"remark":      tx.Remark,
				"reviewed_by": tx.ReviewedBy,
				"reviewed_at": tx.ReviewedAt,
			}).Error; errSave != nil {
			return errSave
		}
		reviewed = tx
		return nil
	})
	if errReview != nil {
		switch {
		case errors.Is(errReview, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		case errors.Is(errReview, errAlreadySettled):
			c.JSON(http.StatusConflict, gin.H{"error": errAlreadySettled.Error()})
		case errors.Is(errReview, errInsufficientBalance):
			c.JSON(http.StatusConflict, gin.H{"error": errInsufficientBalance.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "settle transaction failed"})
		}
		return
	}

	action := "transaction.approve"
	if decision == models.TransactionStatusRejected {
		action = "transaction.reject"
	}
	ip, agent := clientContext(c)
	h.audit.Record(c.Request.Context(), admin.ID, action, "transaction", id,
		gin.H{"remark": remark, "amount": reviewed.Amount, "type": int(reviewed.Type)}, ip, agent)
	c.JSON(http.StatusOK, formatTransaction(&reviewed))
}

var errAlreadySettled = errors.New("transaction already settled")

// applyBalanceEffect applies an approved transaction to the owner's wallet.
func applyBalanceEffect(conn *gorm.DB, tx *models.Transaction) error {
	switch tx.Type {
	case models.TransactionTypeDeposit, models.TransactionTypeBonus,
		models.TransactionTypeLoanDisbursement, models.TransactionTypeTaskReward:
		credit := tx.Amount - tx.Fee
		return conn.Model(&models.User{}).
			Where("id = ?", tx.UserID).
			Update("balance", gorm.Expr("balance + ?", credit)).Error
	case models.TransactionTypeWithdrawal, models.TransactionTypeLoanRepayment:
		debit := tx.Amount + tx.Fee
		result := conn.Model(&models.User{}).
			Where("id = ? AND balance >= ?", tx.UserID, debit).
			Update("balance", gorm.Expr("balance - ?", debit))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errInsufficientBalance
		}
		return nil
	default:
		return nil
	}
}

// formatTransaction shapes a transaction record for API responses.
func formatTransaction(tx *models.Transaction) gin.H {
	return gin.H{
		"id":          tx.ID,
		"reference":   tx.Reference,
		"user_id":     tx.UserID,
		"type":        int(tx.Type),
		"amount":      tx.Amount,
		"fee":         tx.Fee,
		"currency":    tx.Currency,
		"gateway":     tx.Gateway,
		"account":     tx.Account,
		"status":      int(tx.Status),
		"remark":      tx.Remark,
		"reviewed_by": tx.ReviewedBy,
		"reviewed_at": tx.ReviewedAt,
		"created_at":  tx.CreatedAt,
	}
}
