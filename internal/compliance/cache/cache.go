// Package cache is a Redis read-through cache over per-level IsVerified
// results. Verification rarely changes but is checked on every gated
// operation, so the verdict is cached with a short TTL and invalidated on
// every write touching the wallet.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"brickshare/internal/compliance/models"
	"brickshare/pkg/domain"
	"brickshare/pkg/platform/circuit"
)

const (
	verifiedKeyPrefix = "compliance:verified:"
	defaultTTL        = 30 * time.Second
)

// VerificationCache caches yes/no verification verdicts keyed by
// (wallet, required level).
type VerificationCache struct {
	client  *redis.Client
	ttl     time.Duration
	breaker *circuit.Breaker
}

// Option configures the cache.
type Option func(*VerificationCache)

// WithTTL overrides the default entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *VerificationCache) {
		c.ttl = ttl
	}
}

// New constructs the cache. A nil client yields a nil cache, which every
// method treats as a permanent miss.
func New(client *redis.Client, opts ...Option) *VerificationCache {
	if client == nil {
		return nil
	}
	c := &VerificationCache{
		client:  client,
		ttl:     defaultTTL,
		breaker: circuit.New("verification-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func key(wallet domain.AccountID, level models.Level) string {
	return fmt.Sprintf("%s%s:%d", verifiedKeyPrefix, wallet, level)
}

// Get returns the cached verdict. ok is false on a miss, when the cache is
// disabled, or while the breaker is open after repeated Redis failures.
func (c *VerificationCache) Get(ctx context.Context, wallet domain.AccountID, level models.Level) (verified, ok bool) {
	if c == nil || c.breaker.IsOpen() {
		return false, false
	}
	val, err := c.client.Get(ctx, key(wallet, level)).Result()
	if errors.Is(err, redis.Nil) {
		c.breaker.RecordSuccess()
		return false, false
	}
	if err != nil {
		c.breaker.RecordFailure()
		return false, false
	}
	c.breaker.RecordSuccess()
	return val == "1", true
}

// Set stores a verdict. Errors are dropped; the store remains the source of
// truth.
func (c *VerificationCache) Set(ctx context.Context, wallet domain.AccountID, level models.Level, verified bool) {
	if c == nil || c.breaker.IsOpen() {
		return
	}
	val := "0"
	if verified {
		val = "1"
	}
	if err := c.client.Set(ctx, key(wallet, level), val, c.ttl).Err(); err != nil {
		c.breaker.RecordFailure()
	}
}

// Invalidate drops every cached verdict for the wallet. Called after any
// write that can change the wallet's verification status. Runs even while
// the breaker is open so no stale verdict survives a Redis brownout.
func (c *VerificationCache) Invalidate(ctx context.Context, wallet domain.AccountID) {
	if c == nil {
		return
	}
	keys := make([]string, 0, int(models.LevelInstitutional)+1)
	for level := models.LevelNone; level <= models.LevelInstitutional; level++ {
		keys = append(keys, key(wallet, level))
	}
	c.client.Del(ctx, keys...)
}
