package sign

import (
	"context"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ReplayGuard remembers accepted signatures for the freshness window.
type ReplayGuard interface {
	// Remember records signature and reports whether this is its first use.
	Remember(ctx context.Context, signature string, ttl time.Duration) (bool, error)
}

var (
	_ ReplayGuard = (*MemoryReplayGuard)(nil)
	_ ReplayGuard = (*RedisReplayGuard)(nil)
)

// MemoryReplayGuard is a process-local guard for single-host deployments.
type MemoryReplayGuard struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryReplayGuard() *MemoryReplayGuard {
	return &MemoryReplayGuard{
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

func (g *MemoryReplayGuard) Remember(_ context.Context, signature string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for sig, exp := range g.seen {
		if now.After(exp) {
			delete(g.seen, sig)
		}
	}

	if _, ok := g.seen[signature]; ok {
		return false, nil
	}
	g.seen[signature] = now.Add(ttl)
	return true, nil
}

const replayKeyPrefix = "sentinel:sig:"

// RedisReplayGuard shares seen signatures between judge hosts.
type RedisReplayGuard struct {
	client goredis.UniversalClient
}

func NewRedisReplayGuard(client goredis.UniversalClient) *RedisReplayGuard {
	return &RedisReplayGuard{client: client}
}

// Remember uses SET NX so exactly one caller wins per signature.
func (g *RedisReplayGuard) Remember(ctx context.Context, signature string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, replayKeyPrefix+signature, time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: remember signature: %w", err)
	}
	return ok, nil
}
