package utils

import (
	"time" // Time for token expiration

	"github.com/golang-jwt/jwt/v5" // JWT library
	"github.com/google/uuid"       // Token ids
)

// Claims carried by every access token
type Claims struct {
	UserID               string `json:"user_id"` // Custom claim for user ID
	jwt.RegisteredClaims        // Standard JWT claims
}

// GenerateJWT creates a signed HS256 token for userID that expires after ttl
func GenerateJWT(userID, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID, // Custom claim for user ID
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),                 // Token id (jti)
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)), // Token expiry
			IssuedAt:  jwt.NewNumericDate(now),          // Issued at current time
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims) // Create token with claims
	return token.SignedString([]byte(secret))                  // Sign the token with the secret
}

// ParseJWT parses and validates a JWT token string
func ParseJWT(tokenStr, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil // Return the secret key for validation
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	// Check for parsing errors
	if err != nil {
		return nil, err // Return error if parsing fails
	}
	// Validate token and extract claims
	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.UserID != "" {
		return claims, nil // Return claims if valid
	}
	// Return error if token is invalid
	return nil, jwt.ErrTokenInvalidClaims
}

// RemainingLifetime reports how long verified claims stay valid; fallback is used when they carry no exp
func RemainingLifetime(claims *Claims, fallback time.Duration) time.Duration {
	if claims.ExpiresAt == nil {
		return fallback // No expiry claim
	}
	return time.Until(claims.ExpiresAt.Time)
}
