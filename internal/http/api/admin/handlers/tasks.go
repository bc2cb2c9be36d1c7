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

// TaskHandler manages reward tasks and submission review.
type TaskHandler struct {
	db    *gorm.DB        // Database handle for tasks.
	audit *audit.Recorder // Audit trail for task and review changes.
}

// NewTaskHandler constructs a task handler.
func NewTaskHandler(db *gorm.DB, recorder *audit.Recorder) *TaskHandler {
	return &TaskHandler{db: db, audit: recorder}
}

// taskRequest captures the task create/update payload.
type taskRequest struct {
	Name         string     `json:"name"`          // Task name.
	Description  string     `json:"description"`   // What the user has to do.
	Criteria     string     `json:"criteria"`      // Proof requirements.
	RewardAmount float64    `json:"reward_amount"` // Payout per approved submission.
	Currency     string     `json:"currency"`      // ISO currency code.
	ValidFrom    *time.Time `json:"valid_from"`    // Earliest submission time.
	ValidUntil   *time.Time `json:"valid_until"`   // Latest submission time.
}

func (r *taskRequest) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	if r.RewardAmount < 0 {
		return errors.New("reward_amount must be non-negative")
	}
	if r.ValidFrom != nil && r.ValidUntil != nil && r.ValidUntil.Before(*r.ValidFrom) {
		return errors.New("valid_until must be after valid_from")
	}
	return nil
}

// List returns all tasks, newest first.
func (h *TaskHandler) List(c *gin.Context) {
	var rows []models.Task
	if errFind := h.db.WithContext(c.Request.Context()).Order("id DESC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list tasks failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatTask(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"tasks": out})
}

// Create inserts a new task.
func (h *TaskHandler) Create(c *gin.Context) {
	var body taskRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if errValidate := body.validate(); errValidate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errValidate.Error()})
		return
	}

	task := models.Task{
		Name:         strings.TrimSpace(body.Name),
		Description:  body.Description,
		Criteria:     body.Criteria,
		RewardAmount: body.RewardAmount,
		Currency:     normalizeCurrency(body.Currency),
		ValidFrom:    body.ValidFrom,
		ValidUntil:   body.ValidUntil,
		IsEnabled:    true,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&task).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create task failed"})
		return
	}

	h.record(c, "task.create", task.ID, gin.H{"name": task.Name})
	c.JSON(http.StatusCreated, formatTask(&task))
}

// Update replaces a task's configuration.
func (h *TaskHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var body taskRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if errValidate := body.validate(); errValidate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errValidate.Error()})
		return
	}

	result := h.db.WithContext(c.Request.Context()).Model(&models.Task{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"name":          strings.TrimSpace(body.Name),
			"description":   body.Description,
			"criteria":      body.Criteria,
			"reward_amount": body.RewardAmount,
			"currency":      normalizeCurrency(body.Currency),
			"valid_from":    body.ValidFrom,
			"valid_until":   body.ValidUntil,
		})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update task failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	h.record(c, "task.update", id, gin.H{"name": body.Name})
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// Delete removes a task with no submissions.
func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var submitted int64
	if errCount := h.db.WithContext(c.Request.Context()).Model(&models.TaskSubmission{}).
		Where("task_id = ?", id).
		Count(&submitted).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if submitted > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "task has submissions"})
		return
	}

	result := h.db.WithContext(c.Request.Context()).Delete(&models.Task{}, id)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete task failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	h.record(c, "task.delete", id, nil)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Enable reopens a task for submissions.
func (h *TaskHandler) Enable(c *gin.Context) {
	h.setEnabled(c, true)
}

// Disable stops accepting submissions for a task.
func (h *TaskHandler) Disable(c *gin.Context) {
	h.setEnabled(c, false)
}

func (h *TaskHandler) setEnabled(c *gin.Context, enabled bool) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	result := h.db.WithContext(c.Request.Context()).Model(&models.Task{}).
		Where("id = ?", id).
		Update("is_enabled", enabled)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update task failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	action := "task.disable"
	if enabled {
		action = "task.enable"
	}
	h.record(c, action, id, nil)
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// Submissions returns task submissions filtered by task and status.
func (h *TaskHandler) Submissions(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).Model(&models.TaskSubmission{})

	if raw := strings.TrimSpace(c.Query("task_id")); raw != "" {
		taskID, errParse := strconv.ParseUint(raw, 10, 64)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task_id"})
			return
		}
		query = query.Where("task_id = ?", taskID)
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, errParse := strconv.Atoi(raw)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		query = query.Where("status = ?", status)
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count submissions failed"})
		return
	}

	offset, limit := parsePagination(c)
	var rows []models.TaskSubmission
	if errFind := query.Order("id DESC").Offset(offset).Limit(limit).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list submissions failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatSubmission(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"submissions": out, "total": total})
}

// submissionReviewRequest captures the review decision payload.
type submissionReviewRequest struct {
	Remark string `json:"remark"` // Reviewer note, required on rejection.
}

// ApproveSubmission pays the task reward to the submitter and marks the
// submission approved, in one database transaction.
func (h *TaskHandler) ApproveSubmission(c *gin.Context) {
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

	var body submissionReviewRequest
	if c.Request.ContentLength > 0 {
		if errBind := c.ShouldBindJSON(&body); errBind != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}

	now := time.Now().UTC()
	var reward float64
	errApprove := h.db.WithContext(c.Request.Context()).Transaction(func(conn *gorm.DB) error {
		var submission models.TaskSubmission
		if errFind := conn.First(&submission, id).Error; errFind != nil {
			return errFind
		}
		if submission.Status != models.SubmissionStatusPending {
			return errSubmissionNotPending
		}
		var task models.Task
		if errFind := conn.First(&task, submission.TaskID).Error; errFind != nil {
			return errFind
		}
		reward = task.RewardAmount

		if reward > 0 {
			payout := models.Transaction{
				Reference:  uuid.NewString(),
				UserID:     submission.UserID,
				Type:       models.TransactionTypeTaskReward,
				Amount:     reward,
				Currency:   task.Currency,
				Status:     models.TransactionStatusApproved,
				Remark:     "task reward",
				ReviewedBy: &admin.ID,
				ReviewedAt: &now,
			}
			if errCreate := conn.Create(&payout).Error; errCreate != nil {
				return errCreate
			}
			if errCredit := conn.Model(&models.User{}).
				Where("id = ?", submission.UserID).
				Update("balance", gorm.Expr("balance + ?", reward)).Error; errCredit != nil {
				return errCredit
			}
		}

		return conn.Model(&models.TaskSubmission{}).
			Where("id = ?", submission.ID).
			Updates(map[string]any{
				"status":      models.SubmissionStatusApproved,
				"remark":      strings.TrimSpace(body.Remark),
				"reviewed_by": admin.ID,
				"reviewed_at": now,
			}).Error
	})
	if errApprove != nil {
		switch {
		case errors.Is(errApprove, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		case errors.Is(errApprove, errSubmissionNotPending):
			c.JSON(http.StatusConflict, gin.H{"error": errSubmissionNotPending.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "approve submission failed"})
		}
		return
	}

	ip, agent := clientContext(c)
	h.audit.Record(c.Request.Context(), admin.ID, "task.submission_approve", "task_submission", id,
		gin.H{"reward": reward}, ip, agent)
	c.JSON(http.StatusOK, gin.H{"status": "approved", "reward": reward})
}

var errSubmissionNotPending = errors.New("submission is not pending review")

// RejectSubmission refuses a pending submission with a remark.
func (h *TaskHandler) RejectSubmission(c *gin.Context) {
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

	var body submissionReviewRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	remark := strings.TrimSpace(body.Remark)
	if remark == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "remark is required on rejection"})
		return
	}

	now := time.Now().UTC()
	result := h.db.WithContext(c.Request.Context()).Model(&models.TaskSubmission{}).
		Where("id = ? AND status = ?", id, models.SubmissionStatusPending).
		Updates(map[string]any{
			"status":      models.SubmissionStatusRejected,
			"remark":      remark,
			"reviewed_by": admin.ID,
			"reviewed_at": now,
		})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reject submission failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": errSubmissionNotPending.Error()})
		return
	}

	ip, agent := clientContext(c)
	h.audit.Record(c.Request.Context(), admin.ID, "task.submission_reject", "task_submission", id,
		gin.H{"remark": remark}, ip, agent)
	c.JSON(http.StatusOK, gin.H{"status": "rejected"})
}

func (h *TaskHandler) record(c *gin.Context, action string, entityID uint64, details any) {
	admin, ok := CurrentAdmin(c)
	if !ok {
		return
	}
	ip, agent := clientContext(c)
	h.audit.Record(c.Request.Context(), admin.ID, action, "task", entityID, details, ip, agent)
}

// formatTask shapes a task record for API responses.
func formatTask(task *models.Task) gin.H {
	return gin.H{
		"id":            task.ID,
		"name":          task.Name,
		"description":   task.Description,
		"criteria":      task.Criteria,
		"reward_amount": task.RewardAmount,
		"currency":      task.Currency,
		"valid_from":    task.ValidFrom,
		"valid_until":   task.ValidUntil,
		"is_enabled":    task.IsEnabled,
		"created_at":    task.CreatedAt,
	}
}

// formatSubmission shapes a submission record for API responses.
func formatSubmission(submission *models.TaskSubmission) gin.H {
	return gin.H{
		"id":          submission.ID,
		"task_id":     submission.TaskID,
		"user_id":     submission.UserID,
		"proof":       submission.Proof,
		"status":      int(submission.Status),
		"remark":      submission.Remark,
		"reviewed_by": submission.ReviewedBy,
		"reviewed_at": submission.ReviewedAt,
		"created_at":  submission.CreatedAt,
	}
}
