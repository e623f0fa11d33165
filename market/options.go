package market

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// CategoryCache 快取分類清單，miss 時呼叫 load 回源
type CategoryCache interface {
	Categories(ctx context.Context, load func(context.Context) ([]Category, error)) ([]Category, error)
}

type options struct {
	logger *zap.Logger
	now    func() time.Time
	cache  CategoryCache
	newID  func() string
}

// Option 設定 Lifecycle 與 Listings
type Option func(*options)

// WithLogger 設定 logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock 設定取得目前時間的函數
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithCategoryCache 設定分類快取
func WithCategoryCache(cache CategoryCache) Option {
	return func(o *options) {
		o.cache = cache
	}
}

// WithIDGenerator 設定商品 ID 產生器
func WithIDGenerator(newID func() string) Option {
	return func(o *options) {
		o.newID = newID
	}
}
