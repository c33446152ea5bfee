package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DecisionCache memoizes decisions by request hash. Implementations must
// be safe for concurrent use and must support per-user invalidation,
// because a stale Allow after a role revocation is a security bug.
type DecisionCache interface {
	Get(ctx context.Context, key string) (*Decision, bool)
	Set(ctx context.Context, key string, d *Decision)
	InvalidateUser(ctx context.Context, userID int64)
}

// MemoryDecisionCache is an in-process expirable LRU cache.
type MemoryDecisionCache struct {
	lru *expirable.LRU[string, *Decision]
}

// NewMemoryDecisionCache creates an in-memory cache holding at most size
// entries, each expiring after ttl.
func NewMemoryDecisionCache(size int, ttl time.Duration) *MemoryDecisionCache {
	return &MemoryDecisionCache{
		lru: expirable.NewLRU[string, *Decision](size, nil, ttl),
	}
}

func (c *MemoryDecisionCache) Get(_ context.Context, key string) (*Decision, bool) {
	return c.lru.Get(key)
}

func (c *MemoryDecisionCache) Set(_ context.Context, key string, d *Decision) {
	c.lru.Add(key, d)
}

func (c *MemoryDecisionCache) InvalidateUser(_ context.Context, userID int64) {
	prefix := fmt.Sprintf("authz:decision:%d:", userID)
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.lru.Remove(key)
		}
	}
}

// RedisDecisionCache shares decisions across service instances. Cache
// errors degrade to misses; the engine then re-evaluates, which is
// always safe.
type RedisDecisionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDecisionCache creates a Redis-backed cache with the given TTL.
func NewRedisDecisionCache(client *redis.Client, ttl time.Duration) *RedisDecisionCache {
	return &RedisDecisionCache{client: client, ttl: ttl}
}

func (c *RedisDecisionCache) Get(ctx context.Context, key string) (*Decision, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	d, err := decodeDecision(raw)
	if err != nil {
		return nil, false
	}
	return d, true
}

func (c *RedisDecisionCache) Set(ctx context.Context, key string, d *Decision) {
	raw, err := encodeDecision(d)
	if err != nil {
		return
	}
	c.client.Set(ctx, key, raw, c.ttl)
}

// InvalidateUser walks the user's decision keys with SCAN so the sweep
// never blocks the server the way KEYS would on a large keyspace.
func (c *RedisDecisionCache) InvalidateUser(ctx context.Context, userID int64) {
	pattern := fmt.Sprintf("authz:decision:%d:*", userID)
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return
		}
		if len(keys) > 0 {
			c.client.Del(ctx, keys...)
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}

// cachedDecision is the wire form of a Decision: the reason is stored as
// a kind-tagged JSON envelope so the concrete diagnostic type survives
// the round trip.
type cachedDecision struct {
	Allowed      bool            `json:"allowed"`
	MatchedRoles []string        `json:"matched_roles,omitempty"`
	CheckedAt    time.Time       `json:"checked_at"`
	ReasonKind   string          `json:"reason_kind,omitempty"`
	Reason       json.RawMessage `json:"reason,omitempty"`
}

func encodeDecision(d *Decision) ([]byte, error) {
	cd := cachedDecision{
		Allowed:      d.Allowed,
		MatchedRoles: d.MatchedRoles,
		CheckedAt:    d.CheckedAt,
	}
	if d.Reason != nil {
		raw, err := json.Marshal(d.Reason)
		if err != nil {
			return nil, err
		}
		cd.ReasonKind = d.Reason.ReasonKind()
		cd.Reason = raw
	}
	return json.Marshal(cd)
}

func decodeDecision(raw []byte) (*Decision, error) {
	var cd cachedDecision
	if err := json.Unmarshal(raw, &cd); err != nil {
		return nil, err
	}
	d := &Decision{
		Allowed:      cd.Allowed,
		MatchedRoles: cd.MatchedRoles,
		CheckedAt:    cd.CheckedAt,
	}
	if cd.ReasonKind == "" {
		return d, nil
	}
	switch cd.ReasonKind {
	case "insufficient_permissions":
		var e InsufficientPermissionsError
		if err := json.Unmarshal(cd.Reason, &e); err != nil {
			return nil, err
		}
		d.Reason = &e
	case "role_not_found":
		var e RoleNotFoundError
		if err := json.Unmarshal(cd.Reason, &e); err != nil {
			return nil, err
		}
		d.Reason = &e
	case "unauthorized":
		var e UnauthorizedError
		if err := json.Unmarshal(cd.Reason, &e); err != nil {
			return nil, err
		}
		d.Reason = &e
	default:
		return nil, fmt.Errorf("unknown cached deny reason %q", cd.ReasonKind)
	}
	return d, nil
}
