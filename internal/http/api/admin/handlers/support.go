package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Caqil/iprofit-admin-sub003/internal/audit"
	"github.com/Caqil/iprofit-admin-sub003/internal/models"
)

// SupportHandler manages support ticket conversations and the FAQ.
type SupportHandler struct {
	db    *gorm.DB        // Database handle for tickets and FAQ entries.
	audit *audit.Recorder // Audit trail for support actions.
}

// NewSupportHandler constructs a support handler.
func NewSupportHandler(db *gorm.DB, recorder *audit.Recorder) *SupportHandler {
	return &SupportHandler{db: db, audit: recorder}
}

// ticketMessage is one entry in a ticket conversation.
type ticketMessage struct {
	From    string    `json:"from"`               // "user" or "admin".
	AdminID *uint64   `json:"admin_id,omitempty"` // Replying admin, admin entries only.
	Body    string    `json:"body"`               // Message text.
	At      time.Time `json:"at"`                 // Message time.
}

// ListTickets returns tickets filtered by status and priority.
func (h *SupportHandler) ListTickets(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).Model(&models.SupportTicket{})

	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, errParse := strconv.Atoi(raw)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		query = query.Where("status = ?", status)
	}
	if raw := strings.TrimSpace(c.Query("priority")); raw != "" {
		priority, errParse := strconv.Atoi(raw)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid priority"})
			return
		}
		query = query.Where("priority = ?", priority)
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count tickets failed"})
		return
	}

	offset, limit := parsePagination(c)
	var rows []models.SupportTicket
	if errFind := query.Order("id DESC").Offset(offset).Limit(limit).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list tickets failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatTicket(&rows[i], false))
	}
	c.JSON(http.StatusOK, gin.H{"tickets": out, "total": total})
}

// GetTicket returns one ticket with its conversation.
func (h *SupportHandler) GetTicket(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var ticket models.SupportTicket
	if errFind := h.db.WithContext(c.Request.Context()).First(&ticket, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, formatTicket(&ticket, true))
}

// replyRequest captures a ticket reply.
type replyRequest struct {
	Body string `json:"body"` // Reply text.
}

// Reply appends an admin message to an open ticket and marks it answered.
func (h *SupportHandler) Reply(c *gin.Context) {
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

	var body replyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	text := strings.TrimSpace(body.Body)
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body is required"})
		return
	}

	now := time.Now().UTC()
	errReply := h.db.WithContext(c.Request.Context()).Transaction(func(conn *gorm.DB) error {
		var ticket models.SupportTicket
		if errFind := conn.First(&ticket, id).Error; errFind != nil {
			return errFind
		}
		if ticket.Status == models.TicketStatusClosed {
			return errTicketClosed
		}

		var messages []ticketMessage
		if len(ticket.Messages) > 0 {
			if errParse := json.Unmarshal(ticket.Messages, &messages); errParse != nil {
				return errParse
			}
		}
		adminID := admin.ID
		messages = append(messages, ticketMessage{From: "admin", AdminID: &adminID, Body: text, At: now})
		raw, errMarshal := json.Marshal(messages)
		if errMarshal != nil {
			return errMarshal
		}

		return conn.Model(&models.SupportTicket{}).
			Where("id = ?", ticket.ID).
			Updates(map[string]any{
				"messages":    datatypes.JSON(raw),
				"status":      models.TicketStatusAnswered,
				"assigned_to": admin.ID,
			}).Error
	})
	if errReply != nil {
		switch {
		case errors.Is(errReply, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		case errors.Is(errReply, errTicketClosed):
			c.JSON(http.StatusConflict, gin.H{"error": errTicketClosed.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "reply failed"})
		}
		return
	}

	ip, agent := clientContext(c)
	h.audit.Record(c.Request.Context(), admin.ID, "support.reply", "support_ticket", id, nil, ip, agent)
	c.JSON(http.StatusOK, gin.H{"status": "answered"})
}

var errTicketClosed = errors.New("ticket is closed")

// CloseTicket resolves a ticket.
func (h *SupportHandler) CloseTicket(c *gin.Context) {
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
	result := h.db.WithContext(c.Request.Context()).Model(&models.SupportTicket{}).
		Where("id = ? AND status <> ?", id, models.TicketStatusClosed).
		Updates(map[string]any{"status": models.TicketStatusClosed, "closed_at": now})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "close ticket failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "ticket already closed or unknown"})
		return
	}

	ip, agent := clientContext(c)
	h.audit.Record(c.Request.Context(), admin.ID, "support.close", "support_ticket", id, nil, ip, agent)
	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}

// faqRequest captures the FAQ create/update payload.
type faqRequest struct {
	Question  string `json:"question"`   // Question text.
	Answer    string `json:"answer"`     // Answer text.
	Category  string `json:"category"`   // Grouping label.
	SortOrder int    `json:"sort_order"` // Display ordering weight.
	IsEnabled *bool  `json:"is_enabled"` // Visibility flag, defaults to true.
}

func (r *faqRequest) validate() error {
	if strings.TrimSpace(r.Question) == "" || strings.TrimSpace(r.Answer) == "" {
		return errors.New("question and answer are required")
	}
	return nil
}

// ListFAQ returns FAQ entries ordered by category and sort weight.
func (h *SupportHandler) ListFAQ(c *gin.Context) {
	var rows []models.FAQ
	if errFind := h.db.WithContext(c.Request.Context()).
		Order("category ASC, sort_order ASC, id ASC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list faq failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatFAQ(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"faqs": out})
}

// CreateFAQ inserts an FAQ entry.
func (h *SupportHandler) CreateFAQ(c *gin.Context) {
	var body faqRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if errValidate := body.validate(); errValidate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errValidate.Error()})
		return
	}

	enabled := true
	if body.IsEnabled != nil {
		enabled = *body.IsEnabled
	}
	entry := models.FAQ{
		Question:  strings.TrimSpace(body.Question),
		Answer:    strings.TrimSpace(body.Answer),
		Category:  strings.TrimSpace(body.Category),
		SortOrder: body.SortOrder,
		IsEnabled: enabled,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&entry).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create faq failed"})
		return
	}

	h.record(c, "faq.create", entry.ID)
	c.JSON(http.StatusCreated, formatFAQ(&entry))
}

// UpdateFAQ replaces an FAQ entry.
func (h *SupportHandler) UpdateFAQ(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var body faqRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if errValidate := body.validate(); errValidate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errValidate.Error()})
		return
	}

	updates := map[string]any{
		"question":   strings.TrimSpace(body.Question),
		"answer":     strings.TrimSpace(body.Answer),
		"category":   strings.TrimSpace(body.Category),
		"sort_order": body.SortOrder,
	}
	if body.IsEnabled != nil {
		updates["is_enabled"] = *body.IsEnabled
	}

	result := h.db.WithContext(c.Request.Context()).Model(&models.FAQ{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update faq failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	h.record(c, "faq.update", id)
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// DeleteFAQ removes an FAQ entry.
func (h *SupportHandler) DeleteFAQ(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	result := h.db.WithContext(c.Request.Context()).Delete(&models.FAQ{}, id)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete faq failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	h.record(c, "faq.delete", id)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *SupportHandler) record(c *gin.Context, action string, entityID uint64) {
	admin, ok := CurrentAdmin(c)
	if !ok {
		return
	}
	ip, agent := clientContext(c)
	h.audit.Record(c.Request.Context(), admin.ID, action, "faq", entityID, nil, ip, agent)
}

// formatTicket shapes a ticket record for API responses.
func formatTicket(ticket *models.SupportTicket, includeMessages bool) gin.H {
	out := gin.H{
		"id":          ticket.ID,
		"reference":   ticket.Reference,
		"user_id":     ticket.UserID,
		"subject":     ticket.Subject,
		"status":      int(ticket.Status),
		"priority":    int(ticket.Priority),
		"assigned_to": ticket.AssignedTo,
		"closed_at":   ticket.ClosedAt,
		"created_at":  ticket.CreatedAt,
	}
	if includeMessages {
		out["messages"] = ticket.Messages
	}
	return out
}

// formatFAQ shapes an FAQ record for API responses.
func formatFAQ(entry *models.FAQ) gin.H {
	return gin.H{
		"id":         entry.ID,
		"question":   entry.Question,
		"answer":     entry.Answer,
		"category":   entry.Category,
		"sort_order": entry.SortOrder,
		"is_enabled": entry.IsEnabled,
		"created_at": entry.CreatedAt,
	}
}
