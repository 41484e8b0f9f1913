package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/crm/backend/internal/domain/customer"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	recentKeyPrefix  = "crm:customers:recent"
	recentGenKey     = recentKeyPrefix + ":gen"
	defaultRecentTTL = 5 * time.Minute
)

// RecentCustomersCache decorates a customer.Repository and caches the
// recency window in Redis.
//
// Entries are keyed by a generation counter. Every completed write bumps the
// generation, so a reader never sees a window older than the last write it
// could have observed. A reader racing a write can only fill a key of the
// old generation, which nobody reads again and which expires by TTL.
//
// When the bump fails the write still succeeds. The cached windows are then
// purged where possible and this instance reads through to the repository
// until a later bump goes through.
type RecentCustomersCache struct {
	customer.Repository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger

	// pending counts writes whose generation bump failed
	pending atomic.Int64
}

// RecentCustomersCacheOption configures a RecentCustomersCache
type RecentCustomersCacheOption func(*RecentCustomersCache)

// WithTTL sets how long a cached window lives
func WithTTL(ttl time.Duration) RecentCustomersCacheOption {
	return func(c *RecentCustomersCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCacheLogger sets the logger used for cache failures
func WithCacheLogger(l *zap.Logger) RecentCustomersCacheOption {
	return func(c *RecentCustomersCache) {
		c.logger = l
	}
}

// NewRecentCustomersCache wraps inner with a Redis-backed recency cache
func NewRecentCustomersCache(inner customer.Repository, client *redis.Client, opts ...RecentCustomersCacheOption) *RecentCustomersCache {
	c := &RecentCustomersCache{
		Repository: inner,
		client:     client,
		ttl:        defaultRecentTTL,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type cachedCustomer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

func recentKey(gen int64, limit int) string {
	return fmt.Sprintf("%s:%d:%d", recentKeyPrefix, gen, limit)
}

// FindRecent serves the window from Redis, loading it from the inner
// repository on a miss. Redis failures degrade to a direct read.
func (c *RecentCustomersCache) FindRecent(ctx context.Context, limit int) ([]customer.Customer, error) {
	if limit <= 0 {
		limit = customer.DefaultRecentLimit
	}

	if !c.settle(ctx) {
		return c.Repository.FindRecent(ctx, limit)
	}

	gen, err := c.generation(ctx)
	if err != nil {
		c.warn(ctx, "Failed to read recent customers generation", err)
		return c.Repository.FindRecent(ctx, limit)
	}

	key := recentKey(gen, limit)
	if list, ok := c.load(ctx, key); ok {
		return list, nil
	}

	list, err := c.Repository.FindRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, list)
	return list, nil
}

// Create delegates and then invalidates the cached windows
func (c *RecentCustomersCache) Create(ctx context.Context, cust *customer.Customer) error {
	if err := c.Repository.Create(ctx, cust); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

// Update delegates and then invalidates the cached windows
func (c *RecentCustomersCache) Update(ctx context.Context, id int64, patch customer.Patch) (*customer.Customer, error) {
	updated, err := c.Repository.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx)
	return updated, nil
}

func (c *RecentCustomersCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, recentGenKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *RecentCustomersCache) load(ctx context.Context, key string) ([]customer.Customer, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.warn(ctx, "Failed to get recent customers from cache", err)
		return nil, false
	}

	var entries []cachedCustomer
	if err := json.Unmarshal(data, &entries); err != nil {
		c.warn(ctx, "Dropping corrupt recent customers entry", err)
		_ = c.client.Del(ctx, key).Err()
		return nil, false
	}

	return lo.Map(entries, func(e cachedCustomer, _ int) customer.Customer {
		return customer.Customer{
			ID:        e.ID,
			Name:      e.Name,
			Email:     e.Email,
			Phone:     e.Phone,
			Address:   e.Address,
			CreatedAt: e.CreatedAt,
		}
	}), true
}

func (c *RecentCustomersCache) store(ctx context.Context, key string, list []customer.Customer) {
	entries := lo.Map(list, func(cust customer.Customer, _ int) cachedCustomer {
		return cachedCustomer{
			ID:        cust.ID,
			Name:      cust.Name,
			Email:     cust.Email,
			Phone:     cust.Phone,
			Address:   cust.Address,
			CreatedAt: cust.CreatedAt,
		}
	})
	data, err := json.Marshal(entries)
	if err != nil {
		c.warn(ctx, "Failed to marshal recent customers", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.warn(ctx, "Failed to cache recent customers", err)
	}
}

func (c *RecentCustomersCache) invalidate(ctx context.Context) {
	if err := c.client.Incr(ctx, recentGenKey).Err(); err != nil {
		c.pending.Add(1)
		c.warn(ctx, "Failed to bump recent customers generation", err)
		c.purge(ctx)
	}
}

// settle retries the generation bump owed by failed invalidations. It
// reports whether the cache may be read; a write that failed to invalidate
// while settling keeps the cache bypassed.
func (c *RecentCustomersCache) settle(ctx context.Context) bool {
	owed := c.pending.Load()
	if owed == 0 {
		return true
	}
	if err := c.client.Incr(ctx, recentGenKey).Err(); err != nil {
		return false
	}
	return c.pending.CompareAndSwap(owed, 0)
}

// purge deletes every cached window so other instances reload as well
func (c *RecentCustomersCache) purge(ctx context.Context) {
	var keys []string
	iter := c.client.Scan(ctx, 0, recentKeyPrefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		if key := iter.Val(); key != recentGenKey {
			keys = append(keys, key)
		}
	}
	if err := iter.Err(); err != nil {
		c.warn(ctx, "Failed to scan recent customers windows", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.warn(ctx, "Failed to purge recent customers windows", err)
	}
}

func (c *RecentCustomersCache) warn(ctx context.Context, msg string, err error) {
	c.logger.Warn(msg, append(logger.TraceFields(ctx), zap.Error(err))...)
}

var _ customer.Repository = (*RecentCustomersCache)(nil)
