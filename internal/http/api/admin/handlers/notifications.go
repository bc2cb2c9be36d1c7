package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Caqil/iprofit-admin-sub003/internal/audit"
	"github.com/Caqil/iprofit-admin-sub003/internal/models"
	"github.com/Caqil/iprofit-admin-sub003/internal/notify"
)

// NotificationHandler composes and lists user notifications.
type NotificationHandler struct {
	db         *gorm.DB           // Database handle for notifications.
	dispatcher *notify.Dispatcher // Delivery pipeline.
	audit      *audit.Recorder    // Audit trail for sends.
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(db *gorm.DB, dispatcher *notify.Dispatcher, recorder *audit.Recorder) *NotificationHandler {
	return &NotificationHandler{db: db, dispatcher: dispatcher, audit: recorder}
}

// List returns notifications filtered by user, channel and status.
func (h *NotificationHandler) List(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).Model(&models.Notification{})

	if raw := strings.TrimSpace(c.Query("user_id")); raw != "" {
		userID, errParse := strconv.ParseUint(raw, 10, 64)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
			return
		}
		query = query.Where("user_id = ?", userID)
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, errParse := strconv.Atoi(raw)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		query = query.Where("status = ?", status)
	}
	if raw := strings.TrimSpace(c.Query("channel")); raw != "" {
		channel, errParse := strconv.Atoi(raw)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel"})
			return
		}
		query = query.Where("channel = ?", channel)
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count notifications failed"})
		return
	}

	offset, limit := parsePagination(c)
	var rows []models.Notification
	if errFind := query.Order("id DESC").Offset(offset).Limit(limit).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list notifications failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatNotification(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"notifications": out, "total": total})
}

// sendNotificationRequest captures the compose payload. An empty user_ids
// list broadcasts the message in-app to everyone.
type sendNotificationRequest struct {
	UserIDs []uint64        `json:"user_ids"` // Recipients, empty for broadcast.
	Channel int             `json:"channel"`  // Delivery channel.
	Title   string          `json:"title"`    // Subject line.
	Body    string          `json:"body"`     // Message body.
	Payload json.RawMessage `json:"payload"`  // Structured extras for clients.
}

// Send stores and delivers a notification to the selected recipients.
func (h *NotificationHandler) Send(c *gin.Context) {
	admin, ok := CurrentAdmin(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body sendNotificationRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	title := strings.TrimSpace(body.Title)
	if title == "" || strings.TrimSpace(body.Body) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and body are required"})
		return
	}
	channel := models.NotificationChannel(body.Channel)
	if channel == 0 {
		channel = models.NotificationChannelInApp
	}
	if channel != models.NotificationChannelInApp && channel != models.NotificationChannelEmail {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown channel"})
		return
	}
	if channel == models.NotificationChannelEmail && len(body.UserIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email notifications require recipients"})
		return
	}

	var recipients []models.User
	if len(body.UserIDs) > 0 {
		if errFind := h.db.WithContext(c.Request.Context()).
			Where("id IN ?", body.UserIDs).
			Find(&recipients).Error; errFind != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "load recipients failed"})
			return
		}
		if len(recipients) != len(body.UserIDs) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown recipient"})
			return
		}
	}

	payload := datatypes.JSON([]byte("{}"))
	if trimmed := strings.TrimSpace(string(body.Payload)); trimmed != "" && json.Valid([]byte(trimmed)) {
		payload = datatypes.JSON([]byte(trimmed))
	}

	template := models.Notification{
		Channel:   channel,
		Title:     title,
		Body:      body.Body,
		Payload:   payload,
		CreatedBy: &admin.ID,
	}
	rows, errDispatch := h.dispatcher.Dispatch(c.Request.Context(), template, recipients)
	if errDispatch != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "send notification failed"})
		return
	}

	ip, agent := clientContext(c)
	h.audit.Record(c.Request.Context(), admin.ID, "notification.send", "notification", 0,
		gin.H{"recipients": len(body.UserIDs), "channel": int(channel), "title": title}, ip, agent)

	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatNotification(&rows[i]))
	}
	c.JSON(http.StatusCreated, gin.H{"notifications": out})
}

// formatNotification shapes a notification record for API responses.
func formatNotification(row *models.Notification) gin.H {
	return gin.H{
		"id":         row.ID,
		"user_id":    row.UserID,
		"channel":    int(row.Channel),
		"title":      row.Title,
		"body":       row.Body,
		"status":     int(row.Status),
		"error":      row.Error,
		"sent_at":    row.SentAt,
		"read_at":    row.ReadAt,
		"created_by": row.CreatedBy,
		"created_at": row.CreatedAt,
	}
}
