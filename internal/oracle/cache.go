package oracle

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores token prices by key. Historical prices never change.
type Cache interface {
	Get(ctx context.Context, key string) (float64, bool)
	Set(ctx context.Context, key string, price float64)
}

func cacheKey(token string, block uint64) string {
	return token + ":" + strconv.FormatUint(block, 10)
}

// MemoryCache keeps prices in process memory.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string]float64
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string]float64)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (float64, bool) {
	c.mu.RLock()
	price, ok := c.data[key]
	c.mu.RUnlock()
	return price, ok
}

func (c *MemoryCache) Set(_ context.Context, key string, price float64) {
	c.mu.Lock()
	c.data[key] = price
	c.mu.Unlock()
}

// RedisCache shares prices between exporter runs through Redis.
type RedisCache struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

func NewRedisCache(addr string) *RedisCache {
	return &RedisCache{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		prefix:  "frontier:price:",
		timeout: 500 * time.Millisecond,
	}
}

// Ping checks the connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Get(ctx context.Context, key string) (float64, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	price, err := c.client.Get(ctx, c.prefix+key).Float64()
	if err != nil {
		return 0, false
	}
	return price, true
}

func (c *RedisCache) Set(ctx context.Context, key string, price float64) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	_ = c.client.Set(ctx, c.prefix+key, strconv.FormatFloat(price, 'g', -1, 64), 0).Err()
}
