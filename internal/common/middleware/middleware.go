// Package middleware holds the gin middleware shared by the relay routes.
package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"nomination-relay/internal/common/errors"
	"nomination-relay/internal/common/logger"
)

const (
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "requestId"
)

// CORS allows any origin to POST JSON. Preflight requests end here with 200.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

// RequestID keeps a caller supplied X-Request-ID or generates one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// GetRequestID returns the id set by RequestID, or "" outside of it.
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// AccessLog logs one line per request after it has been served.
func AccessLog(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := map[string]interface{}{
			"requestId":  GetRequestID(c),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"durationMs": time.Since(start).Milliseconds(),
			"clientIp":   c.ClientIP(),
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			log.Error("request completed", fields)
		case c.Writer.Status() >= http.StatusBadRequest:
			log.Warn("request completed", fields)
		default:
			log.Info("request completed", fields)
		}
	}
}

// Recovery turns a panic into a generic 500 body. The panic value is only logged.
func Recovery(log logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		stdErr := errors.NewInternalError(fmt.Errorf("panic: %v", recovered))
		log.Error("recovered from panic", map[string]interface{}{
			"requestId": GetRequestID(c),
			"path":      c.Request.URL.Path,
			"error":     stdErr,
		})
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":      stdErr.Message,
			"code":       stdErr.Code,
			"request_id": GetRequestID(c),
		})
	})
}

// MethodNotAllowed answers routes that exist under a different method.
func MethodNotAllowed() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error":      "Method not allowed",
			"code":       errors.ErrCodeMethodNotAllowed,
			"request_id": GetRequestID(c),
		})
	}
}
