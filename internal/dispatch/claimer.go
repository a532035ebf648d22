package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Claimer provides the dispatch idempotency claim: the first caller to claim
// a key proceeds, later callers for the same key see a duplicate. Claims are
// TTL-bounded so a crashed process cannot hold one forever.
type Claimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

var claimScript = redis.NewScript(`
-- KEYS[1] = claim key
-- ARGV[1] = ttl_ms (int)
--
-- Returns:
--  1 if claimed
--  0 if already claimed
if redis.call('SET', KEYS[1], '1', 'NX', 'PX', ARGV[1]) then
  return 1
end
return 0
`)

// RedisClaimer implements Claimer on a shared Redis, so duplicate scheduler
// firings are deduplicated across all API processes.
type RedisClaimer struct {
	rdb *redis.Client
}

func NewRedisClaimer(rdb *redis.Client) *RedisClaimer {
	return &RedisClaimer{rdb: rdb}
}

func (c *RedisClaimer) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if c.rdb == nil {
		return false, fmt.Errorf("dispatch: redis client is nil")
	}
	if key == "" {
		return false, fmt.Errorf("dispatch: claim key is required")
	}
	if ttl <= 0 {
		return false, fmt.Errorf("dispatch: claim ttl must be > 0")
	}
	res, err := claimScript.Run(ctx, c.rdb, []string{key}, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// MemoryClaimer is an in-process Claimer useful for tests. TTLs are ignored.
// It is not intended for production use.
type MemoryClaimer struct {
	mu     sync.Mutex
	claims map[string]struct{}
}

func NewMemoryClaimer() *MemoryClaimer {
	return &MemoryClaimer{claims: make(map[string]struct{})}
}

func (c *MemoryClaimer) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.claims[key]; dup {
		return false, nil
	}
	c.claims[key] = struct{}{}
	return true, nil
}
