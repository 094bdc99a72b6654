package middleware

import (
	"time" // Latency measurement

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/google/uuid"     // Request ids
	"github.com/sirupsen/logrus" // Logging library
)

const (
	RequestIDHeader = "X-Request-ID"
	RequestIDKey    = "requestID"
)

// RequestID reuses the caller's X-Request-ID or assigns a fresh one
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(RequestIDKey, reqID)
		c.Header(RequestIDHeader, reqID) // Echo back for tracing
		c.Next()
	}
}

// RequestLogger logs one line per request once the handler chain has finished
func RequestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := log.WithFields(logrus.Fields{
			"method":     c.Request.Method,                 // HTTP method
			"path":       c.Request.URL.Path,               // Request path
			"status":     status,                           // Response status
			"latency_ms": time.Since(start).Milliseconds(), // Handler latency
			"client_ip":  c.ClientIP(),                     // Caller address
			"request_id": c.GetString(RequestIDKey),        // Correlation id
			"user_id":    c.GetString(UserIDKey),           // Empty when unauthenticated
		})
		switch {
		case status >= 500:
			entry.Error("Request failed")
		case status >= 400:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request served")
		}
	}
}
