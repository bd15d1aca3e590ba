package prediction

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/config"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/resilience"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "predict:"

// Store is the key-value protocol the cache needs. *pkgredis.Client
// satisfies it; a missing key is reported with pkgredis.ErrNil.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}

// Cache memoises predictions. Every store call goes through a circuit
// breaker and a per-operation timeout, and any store failure is treated as a
// miss so prediction keeps working without the cache.
type Cache struct {
	store     Store
	ttl       time.Duration
	opTimeout time.Duration
	breaker   *resilience.CircuitBreaker
	group     singleflight.Group
	logger    *slog.Logger
	hits      atomic.Int64
	misses    atomic.Int64
}

// NewCache wraps store. breaker may be nil.
func NewCache(store Store, cfg config.RedisConfig, breaker *resilience.CircuitBreaker) *Cache {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("prediction-cache", resilience.CircuitBreakerConfig{})
	}
	return &Cache{
		store:     store,
		ttl:       cfg.CacheTTL,
		opTimeout: cfg.OpTimeout,
		breaker:   breaker,
		logger:    slog.Default().With("component", "prediction-cache"),
	}
}

// Key derives the cache key for a request fingerprint under a model version,
// so promoting a new bundle never serves the previous model's answers.
func Key(modelVersion, fingerprint string) string {
	hash := sha256.Sum256([]byte(fingerprint))
	return fmt.Sprintf("%s%s:%x", keyPrefix, modelVersion, hash[:16])
}

func (c *Cache) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return c.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, c.opTimeout, op, fn)
	})
}

// Get returns the cached prediction for key.
func (c *Cache) Get(ctx context.Context, key string) (float64, bool) {
	var (
		raw  string
		miss bool
	)
	err := c.call(ctx, "cache get", func(ctx context.Context) error {
		v, err := c.store.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			miss = true
			return nil
		}
		raw = v
		return err
	})
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
		c.misses.Add(1)
		return 0, false
	}
	if miss {
		c.misses.Add(1)
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		c.logger.Error("cached value is not a number", "key", key, "error", err)
		c.misses.Add(1)
		return 0, false
	}
	c.hits.Add(1)
	return v, true
}

// Set stores v under key with the configured TTL. Failures are logged.
func (c *Cache) Set(ctx context.Context, key string, v float64) {
	raw := strconv.FormatFloat(v, 'g', -1, 64)
	err := c.call(ctx, "cache set", func(ctx context.Context) error {
		return c.store.Set(ctx, key, raw, c.ttl)
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached value for key or computes, caches and
// returns it. Concurrent callers for the same key share one computation.
func (c *Cache) GetOrCompute(ctx context.Context, key string, compute func() (float64, error)) (float64, bool, error) {
	if v, ok := c.Get(ctx, key); ok {
		return v, true, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		v, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, v)
		return v, nil
	})
	if err != nil {
		return 0, false, err
	}
	return val.(float64), false, nil
}

// Invalidate removes every cached prediction.
func (c *Cache) Invalidate(ctx context.Context) (int64, error) {
	var deleted int64
	err := c.call(ctx, "cache invalidate", func(ctx context.Context) error {
		n, err := c.store.DeletePrefix(ctx, keyPrefix)
		deleted = n
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("invalidating prediction cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// Stats returns hit and miss counts since start.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// BreakerState reports the circuit breaker's current state.
func (c *Cache) BreakerState() resilience.State {
	return c.breaker.GetState()
}
