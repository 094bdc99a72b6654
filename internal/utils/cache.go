package utils

import (
	"context"       // Context for Redis operations
	"crypto/sha256" // Token fingerprints
	"encoding/hex"  // Key encoding
	"time"          // Time durations

	"github.com/redis/go-redis/v9" // Redis client
)

const blacklistPrefix = "blacklist:" // Redis key prefix for revoked tokens

// TokenBlacklist stores revoked tokens in Redis until they would have expired anyway
type TokenBlacklist struct {
	rdb redis.Cmdable
}

// NewTokenBlacklist returns a blacklist backed by rdb
func NewTokenBlacklist(rdb redis.Cmdable) *TokenBlacklist {
	return &TokenBlacklist{rdb: rdb}
}

// Add revokes token for ttl; a non-positive ttl is a no-op
func (b *TokenBlacklist) Add(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil // Already expired, nothing to revoke
	}
	return b.rdb.Set(ctx, tokenKey(token), 1, ttl).Err() // Entry vanishes with the token
}

// Contains reports whether token has been revoked
func (b *TokenBlacklist) Contains(ctx context.Context, token string) (bool, error) {
	n, err := b.rdb.Exists(ctx, tokenKey(token)).Result()
	if err != nil {
		return false, err // Redis error
	}
	return n > 0, nil
}

// tokenKey hashes the raw token so bearer credentials never sit in Redis
func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return blacklistPrefix + hex.EncodeToString(sum[:])
}

// IncrWithin increments key and starts its expiry window if it has none yet
func IncrWithin(ctx context.Context, rdb redis.Cmdable, key string, window time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window) // Leaves a running window alone
		return nil
	})
	if err != nil {
		return 0, err // Redis error
	}
	return incr.Val(), nil
}
