package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ResultCache keeps recent agent results in redis so the UI can re-fetch
// an analysis without paying for another batch of LLM calls. A miss or a
// redis outage is never an error: the caller just runs the pipeline.
type ResultCache struct {
	Rdb *redis.Client
	TTL time.Duration
}

func NewResultCache(rdb *redis.Client, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ResultCache{Rdb: rdb, TTL: ttl}
}

func cacheKey(userID, agentType, platform string) string {
	return fmt.Sprintf("agent:result:%s:%s:%s", userID, agentType, platform)
}

// Get returns the cached result payload if present.
func (c *ResultCache) Get(ctx context.Context, userID, agentType, platform string) (json.RawMessage, bool) {
	if c == nil || c.Rdb == nil {
		return nil, false
	}
	raw, err := c.Rdb.Get(ctx, cacheKey(userID, agentType, platform)).Bytes()
	if err != nil {
		return nil, false
	}
	return raw, true
}

// Set stores a result payload with the configured TTL.
func (c *ResultCache) Set(ctx context.Context, userID, agentType, platform string, payload any) {
	if c == nil || c.Rdb == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = c.Rdb.Set(ctx, cacheKey(userID, agentType, platform), raw, c.TTL).Err()
}

// Invalidate drops the cached result for one agent/platform pair.
func (c *ResultCache) Invalidate(ctx context.Context, userID, agentType, platform string) {
	if c == nil || c.Rdb == nil {
		return
	}
	_ = c.Rdb.Del(ctx, cacheKey(userID, agentType, platform)).Err()
}
