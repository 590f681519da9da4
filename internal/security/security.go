package security

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ZanzyTHEbar/devmine/internal/errors"
)

// Config holds security middleware settings
type Config struct {
	EnableHSTS     bool
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

// DefaultConfig returns secure defaults
func DefaultConfig() Config {
	return Config{
		RequestTimeout: 30 * time.Second,
		MaxBodyBytes:   64 << 10,
	}
}

// HeadersMiddleware adds security headers to all responses
func HeadersMiddleware(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

		// Swagger UI loads its own scripts and styles.
		if !strings.HasPrefix(c.Request.URL.Path, "/swagger/") {
			c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		}

		if cfg.EnableHSTS {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}

// RequestTimeout bounds the request context so database calls give up
// after d
func RequestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Timeout", strconv.Itoa(int(d.Seconds())))

		c.Next()
	}
}

// RequireJSON rejects bodies that are not JSON and caps their size
func RequireJSON(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		contentType := strings.ToLower(c.GetHeader("Content-Type"))
		if !strings.HasPrefix(contentType, "application/json") {
			apperrors.Abort(c, apperrors.NewValidationError("Content-Type must be application/json", contentType))
			return
		}

		if maxBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}

		c.Next()
	}
}
