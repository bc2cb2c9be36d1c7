package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Caqil/iprofit-admin-sub003/internal/audit"
	"github.com/Caqil/iprofit-admin-sub003/internal/models"
)

// NewsHandler manages announcements and articles.
type NewsHandler struct {
	db    *gorm.DB        // Database handle for news.
	audit *audit.Recorder // Audit trail for publishing actions.
}

// NewNewsHandler constructs a news handler.
func NewNewsHandler(db *gorm.DB, recorder *audit.Recorder) *NewsHandler {
	return &NewsHandler{db: db, audit: recorder}
}

// newsRequest captures the article create/update payload.
type newsRequest struct {
	Title    string `json:"title"`     // Article title.
	Slug     string `json:"slug"`      // URL slug, derived from the title when empty.
	Body     string `json:"body"`      // Article body, markdown.
	CoverURL string `json:"cover_url"` // Cover image URL.
}

func (r *newsRequest) validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return errors.New("title is required")
	}
	if strings.TrimSpace(r.Body) == "" {
		return errors.New("body is required")
	}
	return nil
}

// List returns articles, optionally only published ones.
func (h *NewsHandler) List(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).Model(&models.News{})
	if raw := strings.TrimSpace(c.Query("published")); raw != "" {
		query = query.Where("is_published = ?", raw == "true" || raw == "1")
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count news failed"})
		return
	}

	offset, limit := parsePagination(c)
	var rows []models.News
	if errFind := query.Order("id DESC").Offset(offset).Limit(limit).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list news failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatNews(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"news": out, "total": total})
}

// Get returns one article.
func (h *NewsHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var article models.News
	if errFind := h.db.WithContext(c.Request.Context()).First(&article, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, formatNews(&article))
}

// Create inserts a draft article.
func (h *NewsHandler) Create(c *gin.Context) {
	admin, ok := CurrentAdmin(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body newsRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if errValidate := body.validate(); errValidate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errValidate.Error()})
		return
	}

	slug := strings.TrimSpace(body.Slug)
	if slug == "" {
		slug = slugify(body.Title)
	}

	article := models.News{
		Title:    strings.TrimSpace(body.Title),
		Slug:     slug,
		Body:     body.Body,
		CoverURL: strings.TrimSpace(body.CoverURL),
		AuthorID: &admin.ID,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&article).Error; errCreate != nil {
		if isUniqueViolation(errCreate) {
			c.JSON(http.StatusConflict, gin.H{"error": "slug already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create news failed"})
		return
	}

	h.record(c, "news.create", article.ID, gin.H{"slug": article.Slug})
	c.JSON(http.StatusCreated, formatNews(&article))
}

// Update replaces an article's content.
func (h *NewsHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var body newsRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if errValidate := body.validate(); errValidate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errValidate.Error()})
		return
	}

	updates := map[string]any{
		"title":     strings.TrimSpace(body.Title),
		"body":      body.Body,
		"cover_url": strings.TrimSpace(body.CoverURL),
	}
	if slug := strings.TrimSpace(body.Slug); slug != "" {
		updates["slug"] = slug
	}

	result := h.db.WithContext(c.Request.Context()).Model(&models.News{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			c.JSON(http.StatusConflict, gin.H{"error": "slug already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update news failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	h.record(c, "news.update", id, nil)
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// Delete removes an article.
func (h *NewsHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	result := h.db.WithContext(c.Request.Context()).Delete(&models.News{}, id)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete news failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	h.record(c, "news.delete", id, nil)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Publish makes an article visible, stamping the first publication time.
func (h *NewsHandler) Publish(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var article models.News
	if errFind := h.db.WithContext(c.Request.Context()).First(&article, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	updates := map[string]any{"is_published": true}
	if article.PublishedAt == nil {
		now := time.Now().UTC()
		updates["published_at"] = now
	}
	if errSave := h.db.WithContext(c.Request.Context()).Model(&models.News{}).
		Where("id = ?", id).
		Updates(updates).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "publish news failed"})
		return
	}

	h.record(c, "news.publish", id, nil)
	c.JSON(http.StatusOK, gin.H{"status": "published"})
}

// Unpublish hides an article.
func (h *NewsHandler) Unpublish(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	result := h.db.WithContext(c.Request.Context()).Model(&models.News{}).
		Where("id = ?", id).
		Update("is_published", false)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unpublish news failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	h.record(c, "news.unpublish", id, nil)
	c.JSON(http.StatusOK, gin.H{"status": "unpublished"})
}

func (h *NewsHandler) record(c *gin.Context, action string, entityID uint64, details any) {
	admin, ok := CurrentAdmin(c)
	if !ok {
		return
	}
	ip, agent := clientContext(c)
	h.audit.Record(c.Request.Context(), admin.ID, action, "news", entityID, details, ip, agent)
}

// slugify derives a URL slug from a title: lower-cased, non-alphanumerics
// collapsed into single hyphens.
func slugify(title string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// formatNews shapes an article record for API responses.
func formatNews(article *models.News) gin.H {
	return gin.H{
		"id":           article.ID,
		"title":        article.Title,
		"slug":         article.Slug,
		"body":         article.Body,
		"cover_url":    article.CoverURL,
		"author_id":    article.AuthorID,
		"is_published": article.IsPublished,
		"published_at": article.PublishedAt,
		"created_at":   article.CreatedAt,
	}
}
