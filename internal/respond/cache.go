package respond

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"restaurant-receptionist/internal/common/logger"
	"restaurant-receptionist/internal/nlu/features"
)

// Cache stores generated replies keyed by normalized utterance.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
}

// CacheKey normalizes text so trivially different phrasings of the same
// question share an entry.
func CacheKey(text string) string {
	return features.Normalize(text)
}

// MemoryCache is a bounded LRU with per-entry expiry.
type MemoryCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time
	ll       *list.List
	items    map[string]*list.Element
}

type memoryEntry struct {
	key       string
	value     string
	expiresAt time.Time
}

func NewMemoryCache(capacity int, ttl time.Duration) *MemoryCache {
	if capacity <= 0 {
		capacity = 500
	}
	return &MemoryCache{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return "", false
	}
	e := el.Value.(*memoryEntry)
	if c.ttl > 0 && c.now().After(e.expiresAt) {
		c.ll.Remove(el)
		delete(c.items, key)
		return "", false
	}
	c.ll.MoveToFront(el)
	return e.value, true
}

func (c *MemoryCache) Set(_ context.Context, key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	expires := c.now().Add(c.ttl)
	if el, ok := c.items[key]; ok {
		e := el.Value.(*memoryEntry)
		e.value, e.expiresAt = value, expires
		c.ll.MoveToFront(el)
		return
	}
	c.items[key] = c.ll.PushFront(&memoryEntry{key: key, value: value, expiresAt: expires})
	for c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*memoryEntry).key)
	}
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

const replyKeyPrefix = "reply:"

// RedisCache shares generated replies across receptionist processes. Redis
// errors degrade to cache misses.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewRedisCache(client *redis.Client, ttl time.Duration, log logger.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: log.With(map[string]interface{}{"component": "reply-cache"}),
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.client.Get(ctx, replyKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		c.logger.WithError(err).Warn("reply cache read failed", map[string]interface{}{"key": key})
		return "", false
	}
	return val, true
}

func (c *RedisCache) Set(ctx context.Context, key, value string) {
	if err := c.client.Set(ctx, replyKeyPrefix+key, value, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("reply cache write failed", map[string]interface{}{"key": key})
	}
}
