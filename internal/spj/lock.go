package spj

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Locker serializes SPJ builds for one key across judge hosts that share
// the test-case directory.
type Locker interface {
	// Lock blocks until the key is held or ctx ends. The returned func releases it.
	Lock(ctx context.Context, key string) (func(), error)
}

var (
	_ Locker = NopLocker{}
	_ Locker = (*RedisLocker)(nil)
)

// NopLocker is used on single-host deployments.
type NopLocker struct{}

func (NopLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}

// keyedMutex hands out one mutex per key and forgets it when unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

const (
	lockKeyPrefix    = "sentinel:spj:lock:"
	defaultLockTTL   = 2 * time.Minute
	defaultLockRetry = 50 * time.Millisecond
)

// unlockScript deletes the lock only if it still carries our token.
var unlockScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a SET NX PX lock with a random owner token.
type RedisLocker struct {
	client goredis.UniversalClient
	ttl    time.Duration
	retry  time.Duration
}

// NewRedisLocker creates a Redis-backed lock. ttl bounds how long a crashed
// holder can block others; it must exceed the longest SPJ compile.
func NewRedisLocker(client goredis.UniversalClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{client: client, ttl: ttl, retry: defaultLockRetry}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := lockKeyPrefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: acquire spj lock: %w", err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("redis: wait for spj lock: %w", ctx.Err())
		case <-time.After(l.retry):
		}
	}

	return func() {
		// A background context so a cancelled caller still releases the key.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// On failure the TTL reclaims the key.
		_ = unlockScript.Run(ctx, l.client, []string{redisKey}, token).Err()
	}, nil
}
