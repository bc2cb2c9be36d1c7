package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Caqil/iprofit-admin-sub003/internal/models"
)

// ContextAdminKey is the gin context key under which the auth middleware
// stores the authenticated admin record.
const ContextAdminKey = "admin"

// ContextDeviceKey is the gin context key under which the device-check
// middleware stores the caller's device fingerprint.
const ContextDeviceKey = "device_id"

// DeviceID returns the device fingerprint captured by the device-check
// middleware, empty when the caller sent none.
func DeviceID(c *gin.Context) string {
	return c.GetString(ContextDeviceKey)
}

// CurrentAdmin returns the authenticated admin stored by the auth middleware.
func CurrentAdmin(c *gin.Context) (models.Admin, bool) {
	value, exists := c.Get(ContextAdminKey)
	if !exists {
		return models.Admin{}, false
	}
	admin, ok := value.(models.Admin)
	return admin, ok
}

// parseIDParam parses a positive numeric path parameter.
func parseIDParam(c *gin.Context, name string) (uint64, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if errParse != nil || id == 0 {
		return 0, false
	}
	return id, true
}

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

// parsePagination reads page/limit query parameters and returns the
// resulting offset and limit.
func parsePagination(c *gin.Context) (offset, limit int) {
	limit = defaultPageSize
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		if parsed, errParse := strconv.Atoi(raw); errParse == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	page := 1
	if raw := strings.TrimSpace(c.Query("page")); raw != "" {
		if parsed, errParse := strconv.Atoi(raw); errParse == nil && parsed > 0 {
			page = parsed
		}
	}
	return (page - 1) * limit, limit
}

const pgUniqueViolationCode = "23505"

// isUniqueViolation reports whether the error is a unique-constraint
// violation on either supported dialect.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// clientContext extracts the request address and user agent for audit entries.
func clientContext(c *gin.Context) (ip, userAgent string) {
	return c.ClientIP(), c.Request.UserAgent()
}
