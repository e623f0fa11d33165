package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"campusmart/market"
)

// Cache 是 read-through 快取，同一個 key 的回源會以 singleflight 合併
type Cache struct {
	client redis.Cmdable
	prefix string
	logger *zap.Logger
	sf     singleflight.Group
}

type CacheOption func(*Cache)

// WithCachePrefix 設定快取 key 前綴
func WithCachePrefix(prefix string) CacheOption {
	return func(c *Cache) {
		c.prefix = prefix
	}
}

// WithCacheLogger 設定 logger
func WithCacheLogger(logger *zap.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = logger
	}
}

// NewCache 建立新的快取
func NewCache(client redis.Cmdable, opts ...CacheOption) *Cache {
	c := &Cache{client: client, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrLoad 先讀快取，miss 或 Redis 失敗時回源並回寫
func (c *Cache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error) {
	const op = "redis.Cache.GetOrLoad"
	key = c.prefix + key
	b, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, redis.Nil) {
		c.logger.Warn("Fail to read cache, fallback to loader", zap.String("op", op), zap.String("key", key), zap.Error(err))
	}
	v, err, _ := c.sf.Do(key, func() (any, error) {
		b, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(ctx, key, b, ttl).Err(); err != nil {
			c.logger.Warn("Fail to write cache", zap.String("op", op), zap.String("key", key), zap.Error(err))
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Delete 刪除快取
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	const op = "redis.Cache.Delete"
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = c.prefix + k
	}
	if err := c.client.Del(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("[%s] Fail to delete keys, err=%w", op, err)
	}
	return nil
}

// GetOrLoadValue 是 GetOrLoad 的泛型版本，值以 msgpack 編碼
func GetOrLoadValue[T any](c ICache, ctx context.Context, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var zero T
	b, err := c.GetOrLoad(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return Encode(v)
	})
	if err != nil {
		return zero, err
	}
	return Decode[T](b)
}

const categoriesKey = "categories"

// CategoryCache 實作 market.CategoryCache
type CategoryCache struct {
	cache ICache
	ttl   time.Duration
}

// NewCategoryCache 建立分類快取
func NewCategoryCache(cache ICache, ttl time.Duration) *CategoryCache {
	return &CategoryCache{cache: cache, ttl: ttl}
}

func (cc *CategoryCache) Categories(ctx context.Context, load func(context.Context) ([]market.Category, error)) ([]market.Category, error) {
	return GetOrLoadValue(cc.cache, ctx, categoriesKey, cc.ttl, load)
}

// Invalidate 清除分類快取
func (cc *CategoryCache) Invalidate(ctx context.Context) error {
	return cc.cache.Delete(ctx, categoriesKey)
}
