package api

import (
	"context"  // Store calls
	"errors"   // Error inspection
	"net/http" // HTTP status codes
	"strings"  // String manipulation
	"time"     // Token lifetimes

	"wallet_ledger/internal/domain"     // Domain models
	"wallet_ledger/internal/middleware" // Bearer parsing
	"wallet_ledger/internal/utils"      // JWT and blacklist helpers

	"github.com/gin-gonic/gin"         // Gin web framework
	"github.com/gin-gonic/gin/binding" // Shared body with the rate limiter
	"github.com/google/uuid"           // User ids
	"github.com/sirupsen/logrus"       // Logging library
	"golang.org/x/crypto/bcrypt"       // Password hashing
)

// revokeFallback is used for tokens that carry no exp claim
const revokeFallback = time.Hour

// UserStore persists users together with their wallets
type UserStore interface {
	CreateUserWithWallet(ctx context.Context, user domain.User) (domain.User, error)
	UserByEmail(ctx context.Context, email string) (domain.User, error)
	UserByID(ctx context.Context, id string) (domain.User, error)
}

// TokenRevoker records logged out tokens
type TokenRevoker interface {
	Add(ctx context.Context, token string, ttl time.Duration) error
}

// SignupRequest is the registration payload
type SignupRequest struct {
	Name     string `json:"name" binding:"required,max=120"`          // Display name
	Email    string `json:"email" binding:"required,email"`           // Login email
	Password string `json:"password" binding:"required,min=8,max=72"` // bcrypt caps input at 72 bytes
}

// LoginRequest is the login payload
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`    // Login email
	Password string `json:"password" binding:"required"` // Plain password
}

// UserResponse is the public view of a user
type UserResponse struct {
	ID    string `json:"id"`    // User id
	Name  string `json:"name"`  // Display name
	Email string `json:"email"` // Login email
}

// SignupHandler registers a user and opens their empty wallet
func SignupHandler(users UserStore, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SignupRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "Invalid request: name, a valid email and a password of at least 8 characters are required")
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			log.WithError(err).Error("Failed to hash password")
			fail(c, http.StatusInternalServerError, "Signup failed")
			return
		}

		user := domain.NewUser(uuid.NewString(), strings.TrimSpace(req.Name), strings.TrimSpace(req.Email), string(hash), time.Now().UTC())
		user, err = users.CreateUserWithWallet(c.Request.Context(), user)
		if errors.Is(err, domain.ErrEmailTaken) {
			fail(c, http.StatusBadRequest, "Email already exists")
			return
		}
		if err != nil {
			log.WithField("request_id", c.GetString(middleware.RequestIDKey)).WithError(err).Error("Signup failed")
			fail(c, http.StatusInternalServerError, "Signup failed")
			return
		}

		log.WithFields(logrus.Fields{"user_id": user.ID}).Info("User registered")
		success(c, http.StatusCreated, "Signup successful", gin.H{
			"user": UserResponse{ID: user.ID, Name: user.Name, Email: user.Email},
		})
	}
}

// LoginHandler authenticates a user and returns a JWT token
func LoginHandler(users UserStore, secret string, ttl time.Duration, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Body may already be cached by the rate limiter
		if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
			fail(c, http.StatusBadRequest, "Invalid request")
			return
		}
		user, err := users.UserByEmail(c.Request.Context(), strings.TrimSpace(req.Email))
		if errors.Is(err, domain.ErrUserNotFound) {
			fail(c, http.StatusBadRequest, "Invalid credentials")
			return
		}
		if err != nil {
			log.WithError(err).Error("Login lookup failed")
			fail(c, http.StatusInternalServerError, "Login failed")
			return
		}
		// Compare provided password with stored hash
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			fail(c, http.StatusBadRequest, "Invalid credentials")
			return
		}
		token, err := utils.GenerateJWT(user.ID, secret, ttl)
		if err != nil {
			log.WithError(err).Error("Failed to generate token")
			fail(c, http.StatusInternalServerError, "Failed to generate token")
			return
		}
		success(c, http.StatusOK, "Login successful", gin.H{"token": token})
	}
}

// LogoutHandler revokes the presented token for the rest of its lifetime
func LogoutHandler(revoker TokenRevoker, secret string, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			fail(c, http.StatusBadRequest, "Authorization header missing")
			return
		}
		token, ok := middleware.BearerToken(authHeader)
		if !ok {
			fail(c, http.StatusBadRequest, "Invalid token format")
			return
		}

		claims, err := utils.ParseJWT(token, secret)
		if err != nil {
			// Forged, malformed and expired tokens never authenticate, so there is nothing to revoke
			log.WithError(err).Debug("Logout with unusable token")
			success(c, http.StatusOK, "Logout successful", gin.H{})
			return
		}
		if err := revoker.Add(c.Request.Context(), token, utils.RemainingLifetime(claims, revokeFallback)); err != nil {
			log.WithError(err).Error("Failed to blacklist token")
			fail(c, http.StatusServiceUnavailable, "Logout failed, please retry")
			return
		}
		success(c, http.StatusOK, "Logout successful", gin.H{})
	}
}
