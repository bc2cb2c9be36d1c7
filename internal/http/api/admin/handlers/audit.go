package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	dbutil "github.com/Caqil/iprofit-admin-sub003/internal/db"
	"github.com/Caqil/iprofit-admin-sub003/internal/models"
)

// AuditHandler exposes the audit trail, read-only.
type AuditHandler struct {
	db *gorm.DB // Database handle for audit entries.
}

// NewAuditHandler constructs an audit handler.
func NewAuditHandler(db *gorm.DB) *AuditHandler {
	return &AuditHandler{db: db}
}

// List returns audit entries filtered by admin, action, entity, time range
// and an optional detail field match.
func (h *AuditHandler) List(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).Model(&models.AuditLog{})

	if raw := strings.TrimSpace(c.Query("admin_id")); raw != "" {
		adminID, errParse := strconv.ParseUint(raw, 10, 64)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid admin_id"})
			return
		}
		query = query.Where("admin_id = ?", adminID)
	}
	if action := strings.TrimSpace(c.Query("action")); action != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, action+"%")
		query = query.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "action"), pattern)
	}
	if entity := strings.TrimSpace(c.Query("entity")); entity != "" {
		query = query.Where("entity = ?", entity)
	}
	if raw := strings.TrimSpace(c.Query("entity_id")); raw != "" {
		entityID, errParse := strconv.ParseUint(raw, 10, 64)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entity_id"})
			return
		}
		query = query.Where("entity_id = ?", entityID)
	}
	if raw := strings.TrimSpace(c.Query("from")); raw != "" {
		from, errParse := time.Parse(time.RFC3339, raw)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from time"})
			return
		}
		query = query.Where("created_at >= ?", from)
	}
	if raw := strings.TrimSpace(c.Query("to")); raw != "" {
		to, errParse := time.Parse(time.RFC3339, raw)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to time"})
			return
		}
		query = query.Where("created_at <= ?", to)
	}

	// detail_key/detail_value match one field inside the JSON detail payload.
	detailKey := strings.TrimSpace(c.Query("detail_key"))
	detailValue := strings.TrimSpace(c.Query("detail_value"))
	if detailKey != "" && detailValue != "" {
		expr := dbutil.JSONExtractTextExpr(h.db, "details", detailKey)
		query = query.Where(expr+" = ?", detailValue)
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count audit entries failed"})
		return
	}

	offset, limit := parsePagination(c)
	var rows []models.AuditLog
	if errFind := query.Order("id DESC").Offset(offset).Limit(limit).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list audit entries failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		out = append(out, gin.H{
			"id":         row.ID,
			"admin_id":   row.AdminID,
			"action":     row.Action,
			"entity":     row.Entity,
			"entity_id":  row.EntityID,
			"details":    row.Details,
			"ip":         row.IP,
			"user_agent": row.UserAgent,
			"created_at": row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"entries": out, "total": total})
}
