package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrLockBusy indicates the lock is held elsewhere and retries ran out.
var ErrLockBusy = errors.New("lock is held by another request")

// InventoryLockKey builds redis keys guarding an owner's lot pool.
func InventoryLockKey(ownerID string) string {
	return fmt.Sprintf("inventory:owner:%s:lock", ownerID)
}

// Unlocker releases an obtained lock.
type Unlocker interface {
	Release(ctx context.Context) error
}

// RedisLocker obtains short-lived distributed locks.
type RedisLocker struct {
	client  *redislock.Client
	ttl     time.Duration
	backoff time.Duration
	retries int
}

// NewRedisLocker constructs a locker with the given lease.
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{client: redislock.New(client), ttl: ttl, backoff: 50 * time.Millisecond, retries: 40}
}

// Obtain acquires key, retrying while another holder keeps it.
func (l *RedisLocker) Obtain(ctx context.Context, key string) (Unlocker, error) {
	if l == nil {
		return nil, errors.New("locker not initialised")
	}
	lock, err := l.client.Obtain(ctx, key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(l.backoff), l.retries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockBusy
	}
	if err != nil {
		return nil, fmt.Errorf("shared: obtain lock %s: %w", key, err)
	}
	return lock, nil
}
