package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Reecheble2022/flowswitch-verify/internal/identity"
)

const agentLookupKeyPrefix = "fsv:agentcode:"

// LookupCache is a Redis-backed cache for agent identity lookups. The same
// subject code is typically validated several times in quick succession
// (check, proceed, retry after a typo), and the records are small and slow
// to change. Cache failures degrade to a miss; they never fail the lookup.
type LookupCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// LookupCacheOption configures a LookupCache.
type LookupCacheOption func(*LookupCache)

func WithCacheLogger(logger *slog.Logger) LookupCacheOption {
	return func(c *LookupCache) { c.logger = logger }
}

// NewLookupCache builds a cache with the given retention.
func NewLookupCache(client *redis.Client, ttl time.Duration, opts ...LookupCacheOption) *LookupCache {
	c := &LookupCache{client: client, ttl: ttl}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetAgents returns the cached lookup result for a code, if present.
func (c *LookupCache) GetAgents(ctx context.Context, code string) ([]identity.AgentProfile, bool) {
	raw, err := c.client.Get(ctx, agentLookupKeyPrefix+code).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.warn(ctx, "agent lookup cache read failed", err)
		return nil, false
	}

	var agents []identity.AgentProfile
	if err := json.Unmarshal(raw, &agents); err != nil {
		c.warn(ctx, "agent lookup cache entry corrupt", err)
		return nil, false
	}
	return agents, true
}

// PutAgents stores a lookup result with the cache TTL.
func (c *LookupCache) PutAgents(ctx context.Context, code string, agents []identity.AgentProfile) {
	raw, err := json.Marshal(agents)
	if err != nil {
		c.warn(ctx, "agent lookup cache encode failed", err)
		return
	}
	if err := c.client.Set(ctx, agentLookupKeyPrefix+code, raw, c.ttl).Err(); err != nil {
		c.warn(ctx, "agent lookup cache write failed", err)
	}
}

// Invalidate drops the cached result for a code, e.g. after the backend
// reports the agent record changed.
func (c *LookupCache) Invalidate(ctx context.Context, code string) {
	if err := c.client.Del(ctx, agentLookupKeyPrefix+code).Err(); err != nil {
		c.warn(ctx, "agent lookup cache invalidate failed", err)
	}
}

func (c *LookupCache) warn(ctx context.Context, msg string, err error) {
	if c.logger != nil {
		c.logger.WarnContext(ctx, msg, "error", err.Error())
	}
}
