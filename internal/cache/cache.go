// Package cache is the optional Redis layer in front of the read projections.
// A Cache built without an address is disabled: reads miss, writes are no-ops
// and locks run their function directly.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"trade-ledger/internal/config"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrBusy is returned by WithLock when another holder owns the lock.
var ErrBusy = errors.New("operation already in progress")

const keyPrefix = "trade-ledger:"

// DashboardKey is the cache key of the shared dashboard for a role.
// Customer dashboards are per-user and never cached.
func DashboardKey(role string) string {
	return keyPrefix + "dashboard:" + role
}

// DashboardPrefix matches every cached dashboard.
const DashboardPrefix = keyPrefix + "dashboard:"

func lockKey(name string) string {
	return keyPrefix + "lock:" + name
}

type Cache struct {
	rdb    *redis.Client
	locker *redislock.Client
	log    *logrus.Logger
}

// New connects to Redis when cfg.Address is set and returns a disabled cache otherwise.
func New(ctx context.Context, cfg config.RedisConfig, log *logrus.Logger) (*Cache, error) {
	if cfg.Address == "" {
		return &Cache{log: log}, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address, err)
	}
	log.WithField("addr", cfg.Address).Info("connected to redis")
	return &Cache{rdb: rdb, locker: redislock.New(rdb), log: log}, nil
}

// Enabled reports whether the cache is backed by Redis.
func (c *Cache) Enabled() bool {
	return c != nil && c.rdb != nil
}

// GetJSON loads key into dest and reports whether it was present.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	val, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := c.rdb.Set(ctx, key, b, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Invalidate deletes every key starting with prefix.
func (c *Cache) Invalidate(ctx context.Context, prefix string) error {
	if !c.Enabled() {
		return nil
	}
	iter := c.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan %s*: %w", prefix, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete %d keys: %w", len(keys), err)
	}
	c.log.WithFields(logrus.Fields{"prefix": prefix, "keys": len(keys)}).Debug("cache invalidated")
	return nil
}

// WithLock runs fn while holding the named distributed lock. It does not wait:
// if the lock is held elsewhere it returns ErrBusy.
func (c *Cache) WithLock(ctx context.Context, name string, ttl time.Duration, fn func(context.Context) error) error {
	if !c.Enabled() {
		return fn(ctx)
	}
	lock, err := c.locker.Obtain(ctx, lockKey(name), ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return ErrBusy
	}
	if err != nil {
		return fmt.Errorf("failed to obtain lock %s: %w", name, err)
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			c.log.WithError(err).WithField("lock", name).Warn("failed to release lock")
		}
	}()
	return fn(ctx)
}

func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Close()
}
