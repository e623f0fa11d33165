//go:generate mockgen -package=redis -destination=mock.go -source=interfaces.go

package redis

import (
	"context"
	"time"
)

// ICache 定義了快取的操作介面
type ICache interface {
	GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error)
	Delete(ctx context.Context, keys ...string) error
}

// ITokenStore 定義了一次性/可撤銷 token 的操作介面
type ITokenStore interface {
	Issue(ctx context.Context, kind, subject string, ttl time.Duration) (string, error)
	Peek(ctx context.Context, kind, token string) (string, error)
	Consume(ctx context.Context, kind, token string) (string, error)
	Revoke(ctx context.Context, kind, token string) error
}
