package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"
)

// RedisStockCache keeps aggregated stock in Redis keyed by owner and pool version.
// Redis failures trip a circuit breaker; while it is open reads go straight to the
// loader.
type RedisStockCache struct {
	client  redis.UniversalClient
	ttl     time.Duration
	group   singleflight.Group
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewRedisStockCache instantiates the cache helper.
func NewRedisStockCache(client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *RedisStockCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "inventory-stock-cache",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("name", name), slog.String("from", from.String()), slog.String("to", to.String()))
		},
	})
	return &RedisStockCache{client: client, ttl: ttl, breaker: breaker, logger: logger}
}

func versionKey(ownerID string) string {
	return fmt.Sprintf("inventory:owner:%s:version", ownerID)
}

func stockKey(ownerID string, version int64) string {
	return fmt.Sprintf("inventory:owner:%s:stock:%d", ownerID, version)
}

func (c *RedisStockCache) do(fn func() error) error {
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, fn()
	})
	return err
}

// lookup returns the cache key of the current pool version and the cached payload,
// nil on a miss.
func (c *RedisStockCache) lookup(ctx context.Context, ownerID string) (string, []byte, error) {
	var (
		key     string
		payload []byte
	)
	err := c.do(func() error {
		ver, err := c.client.Get(ctx, versionKey(ownerID)).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		key = stockKey(ownerID, ver)
		payload, err = c.client.Get(ctx, key).Bytes()
		return err
	})
	if errors.Is(err, redis.Nil) {
		return key, nil, nil
	}
	return key, payload, err
}

// Fetch returns the cached rollup or builds it with loader. Concurrent misses for
// the same owner and version share one load.
func (c *RedisStockCache) Fetch(ctx context.Context, ownerID string, loader func(context.Context) ([]AggregateRow, error)) ([]AggregateRow, error) {
	if loader == nil {
		return nil, errors.New("inventory cache: loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	key, payload, err := c.lookup(ctx, ownerID)
	if err != nil {
		c.logger.Warn("stock cache bypassed", slog.String("owner", ownerID), slog.Any("error", err))
		return loader(ctx)
	}
	if payload != nil {
		var rows []AggregateRow
		if err := json.Unmarshal(payload, &rows); err == nil {
			return rows, nil
		}
	}

	ch := c.group.DoChan(key, func() (any, error) {
		rows, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(rows)
		if err != nil {
			return nil, err
		}
		if err := c.do(func() error { return c.client.Set(ctx, key, raw, c.ttl).Err() }); err != nil {
			c.logger.Warn("stock cache store", slog.String("owner", ownerID), slog.Any("error", err))
		}
		return rows, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]AggregateRow), nil
	}
}

// Invalidate bumps the owner's pool version so older entries are never read again.
func (c *RedisStockCache) Invalidate(ctx context.Context, ownerID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, versionKey(ownerID)).Err()
}
