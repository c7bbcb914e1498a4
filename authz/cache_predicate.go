package authz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachingPredicate wraps another Predicate with a Redis-backed decision
// cache keyed by (bearer token, delegate name). A cache hit short-circuits
// the wrapped predicate entirely; a cache miss or a Redis failure falls
// back to evaluating the wrapped predicate (fail-open-to-wrapped on cache
// unavailability, not fail-open on authorization itself — the wrapped
// predicate still runs and can still deny).
//
// Grounded on apisix-go-runner/plugins/authz.go's HGetAll-then-evaluate-
// then-HSet-with-Expire cache shape.
type CachingPredicate struct {
	inner  Predicate
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachingPredicate wraps inner with a decision cache. client may be nil
// (e.g. Redis not configured), in which case every call falls through to
// inner uncached.
func NewCachingPredicate(inner Predicate, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachingPredicate {
	return &CachingPredicate{inner: inner, client: client, ttl: ttl, logger: logger}
}

func (c *CachingPredicate) Authorize(ctx context.Context, req Request) (Decision, error) {
	if c.client == nil {
		return c.inner.Authorize(ctx, req)
	}

	key := cacheKey(ctx, req)
	cached, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		return Decision{Allowed: cached == "allow"}, nil
	case errors.Is(err, redis.Nil):
		// cache miss, fall through to the wrapped predicate
	default:
		c.logger.Warn("authz cache unavailable, falling back to wrapped predicate", zap.Error(err))
	}

	decision, err := c.inner.Authorize(ctx, req)
	if err != nil {
		return decision, err
	}

	value := "deny"
	if decision.Allowed {
		value = "allow"
	}
	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.logger.Warn("authz cache write failed", zap.Error(err))
	}
	return decision, nil
}

func cacheKey(ctx context.Context, req Request) string {
	token, _ := BearerToken(ctx)
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("authz:%s:%s", hex.EncodeToString(sum[:]), req.DelegateName)
}
