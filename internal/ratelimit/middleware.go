package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware returns a gin handler that enforces the limiter and attaches
// quota metadata to every response it sees.
func Middleware(l *Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		result := l.Check(c.Request)
		writeHeaders(c, l.Options().Headers, result)

		if result.Allowed {
			c.Next()
			return
		}

		c.Header("Retry-After", strconv.Itoa(result.RetryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"success": false,
			"error":   l.Options().Message,
			"code":    http.StatusTooManyRequests,
			"details": gin.H{
				"limit":      result.Limit,
				"windowMs":   l.Options().Window.Milliseconds(),
				"retryAfter": result.RetryAfter,
			},
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// writeHeaders attaches quota headers in the configured convention(s).
// Modern headers carry the reset as an ISO-8601 timestamp, legacy headers
// as epoch seconds.
func writeHeaders(c *gin.Context, style HeaderStyle, result Result) {
	if style == HeaderStyleNone {
		return
	}
	limit := strconv.Itoa(result.Limit)
	remaining := strconv.Itoa(result.Remaining)

	if style == HeaderStyleModern || style == HeaderStyleBoth {
		c.Header("RateLimit-Limit", limit)
		c.Header("RateLimit-Remaining", remaining)
		c.Header("RateLimit-Reset", result.Reset.UTC().Format(time.RFC3339))
	}
	if style == HeaderStyleLegacy || style == HeaderStyleBoth {
		c.Header("X-RateLimit-Limit", limit)
		c.Header("X-RateLimit-Remaining", remaining)
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.Reset.Unix(), 10))
	}
}
