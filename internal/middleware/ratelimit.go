package middleware

import (
	"net/http" // HTTP status codes
	"strings"  // Key normalisation
	"time"     // Window length

	"wallet_ledger/internal/utils" // Redis counter helper

	"github.com/gin-gonic/gin"         // Gin web framework
	"github.com/gin-gonic/gin/binding" // Body caching between middleware and handler
	"github.com/redis/go-redis/v9"     // Redis client
	"github.com/sirupsen/logrus"       // Logging library
)

const loginWindow = time.Minute

// LoginRateLimit caps login attempts per email, or per client IP when the body has none.
// Redis failures let the request through.
func LoginRateLimit(rdb redis.Cmdable, maxPerMin int, log logrus.FieldLogger) gin.HandlerFunc {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	return func(c *gin.Context) {
		if rdb == nil {
			c.Next() // No-op without Redis
			return
		}
		var req struct {
			Email string `json:"email"`
		}
		_ = c.ShouldBindBodyWith(&req, binding.JSON) // Handler re-binds from the cached body
		subject := strings.ToLower(strings.TrimSpace(req.Email))
		if subject == "" {
			subject = c.ClientIP()
		}

		count, err := utils.IncrWithin(c.Request.Context(), rdb, "rl:login:"+subject, loginWindow)
		if err != nil {
			log.WithError(err).Warn("Login rate limiter unavailable, allowing request")
			c.Next() // Fail open
			return
		}
		if count > int64(maxPerMin) {
			abort(c, http.StatusTooManyRequests, "Too many login attempts, try again later")
			return
		}
		c.Next()
	}
}
