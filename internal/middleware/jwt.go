package middleware

import (
	"context"  // Lookups honour the request context
	"errors"   // Error inspection
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"wallet_ledger/internal/domain" // User lookups
	"wallet_ledger/internal/utils"  // JWT utility functions

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// Context keys set by JWTAuthMiddleware
const (
	UserIDKey = "userID"
	TokenKey  = "token"
)

// UserFinder resolves the user a token was issued to
type UserFinder interface {
	UserByID(ctx context.Context, id string) (domain.User, error)
}

// RevocationChecker reports whether a token was revoked at logout
type RevocationChecker interface {
	Contains(ctx context.Context, token string) (bool, error)
}

// BearerToken extracts the token from an Authorization header value
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// JWTAuthMiddleware validates bearer tokens and puts the caller's user ID in the context
func JWTAuthMiddleware(secret string, revoked RevocationChecker, users UserFinder, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization") // Get Authorization header
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "No token provided")
			return
		}
		tokenStr, ok := BearerToken(authHeader)
		if !ok {
			abort(c, http.StatusUnauthorized, "Invalid authorization format")
			return
		}

		// Revoked tokens are rejected before the signature is even checked
		isRevoked, err := revoked.Contains(c.Request.Context(), tokenStr)
		if err != nil {
			log.WithFields(logrus.Fields{"request_id": c.GetString(RequestIDKey)}).WithError(err).Error("Token blacklist lookup failed")
			abort(c, http.StatusServiceUnavailable, "Service temporarily unavailable")
			return
		}
		if isRevoked {
			abort(c, http.StatusUnauthorized, "Token blacklisted, please login")
			return
		}

		claims, err := utils.ParseJWT(tokenStr, secret) // Parse the JWT token
		if err != nil {
			log.WithFields(logrus.Fields{"request_id": c.GetString(RequestIDKey), "error": err.Error()}).Warn("JWT verification failed")
			abort(c, http.StatusForbidden, "Invalid or expired token")
			return
		}

		// The user must still exist
		user, err := users.UserByID(c.Request.Context(), claims.UserID)
		if errors.Is(err, domain.ErrUserNotFound) {
			abort(c, http.StatusNotFound, "User not found or no longer exists")
			return
		}
		if err != nil {
			log.WithFields(logrus.Fields{"user_id": claims.UserID, "request_id": c.GetString(RequestIDKey)}).WithError(err).Error("User lookup failed")
			abort(c, http.StatusServiceUnavailable, "Service temporarily unavailable")
			return
		}

		c.Set(UserIDKey, user.ID) // Store userID in context
		c.Set(TokenKey, tokenStr) // Store raw token for logout
		c.Next()                  // Proceed to the next handler
	}
}

// abort stops the chain with the standard error envelope
func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}
