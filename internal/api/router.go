package api

import (
	"context"  // Health probes
	"net/http" // HTTP status codes
	"time"     // Token lifetime

	"wallet_ledger/internal/middleware" // Auth, request id, logging, rate limit

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
)

// Pinger is anything the health check can probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a plain function to Pinger
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Blacklist both records and checks revoked tokens
type Blacklist interface {
	TokenRevoker
	middleware.RevocationChecker
}

// Deps wires the router
type Deps struct {
	Users          UserStore
	Ledger         Ledger
	Blacklist      Blacklist
	Redis          redis.Cmdable // Optional, enables login rate limiting
	Probes         map[string]Pinger
	JWTSecret      string
	JWTTTL         time.Duration
	LoginRateLimit int
	TrustedProxies []string
	Log            logrus.FieldLogger
}

// NewRouter builds the gin engine with every route mounted
func NewRouter(d Deps) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(d.TrustedProxies); err != nil {
		return nil, err
	}
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(d.Log))

	r.GET("/", HealthHandler(d.Probes, d.Log))      // Health check
	r.GET(DocsPath, DocsHandler)                    // API reference
	r.GET(DocsPath+"/openapi.json", OpenAPIHandler) // OpenAPI document

	// Auth routes
	auth := r.Group("/auth")
	auth.POST("/signup", SignupHandler(d.Users, d.Log))
	auth.POST("/login", middleware.LoginRateLimit(d.Redis, d.LoginRateLimit, d.Log), LoginHandler(d.Users, d.JWTSecret, d.JWTTTL, d.Log))
	auth.POST("/logout", LogoutHandler(d.Blacklist, d.JWTSecret, d.Log))

	// Wallet routes (protected by JWT)
	wallet := r.Group("/wallet")
	wallet.Use(middleware.JWTAuthMiddleware(d.JWTSecret, d.Blacklist, d.Users, d.Log))
	wallet.POST("/credit", CreditHandler(d.Ledger, d.Log))
	wallet.POST("/debit", DebitHandler(d.Ledger, d.Log))
	wallet.GET("/balance", BalanceHandler(d.Ledger, d.Log))
	wallet.GET("/transactions", TransactionsHandler(d.Ledger, d.Log))

	r.NoRoute(func(c *gin.Context) { fail(c, http.StatusNotFound, "Route not found") })
	return r, nil
}

// HealthHandler probes each dependency and reports 503 if any is down
func HealthHandler(probes map[string]Pinger, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		status := make(map[string]string, len(probes))
		healthy := true
		for name, p := range probes {
			if err := p.Ping(ctx); err != nil {
				log.WithField("dependency", name).WithError(err).Warn("Health probe failed")
				status[name] = "down"
				healthy = false
				continue
			}
			status[name] = "up"
		}
		if !healthy {
			c.JSON(http.StatusServiceUnavailable, Response{Success: false, Message: "Wallet API degraded", Data: status})
			return
		}
		success(c, http.StatusOK, "Wallet API running", status)
	}
}
