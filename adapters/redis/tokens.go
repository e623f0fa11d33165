package redis

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTokenNotFound 表示 token 不存在、已過期或已被使用
var ErrTokenNotFound = errors.New("token not found")

type tokenRecord struct {
	Subject  string    `msgpack:"sub"`
	IssuedAt time.Time `msgpack:"iat"`
}

// TokenStore 將隨機產生的 token 對應到 subject，並設定存活時間
type TokenStore struct {
	client redis.Cmdable
	prefix string
	now    func() time.Time
}

type TokenStoreOption func(*TokenStore)

// WithTokenPrefix 設定 token key 前綴
func WithTokenPrefix(prefix string) TokenStoreOption {
	return func(s *TokenStore) {
		s.prefix = prefix
	}
}

// NewTokenStore 建立新的 TokenStore
func NewTokenStore(client redis.Cmdable, opts ...TokenStoreOption) *TokenStore {
	s := &TokenStore{client: client, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TokenStore) key(kind, token string) string {
	return s.prefix + kind + ":" + token
}

func generateToken() (string, error) {
	const op = "generateToken"
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("[%s] Fail to generate token, err=%w", op, err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Issue 產生新的 token
func (s *TokenStore) Issue(ctx context.Context, kind, subject string, ttl time.Duration) (string, error) {
	const op = "redis.TokenStore.Issue"
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	b, err := Encode(tokenRecord{Subject: subject, IssuedAt: s.now()})
	if err != nil {
		return "", fmt.Errorf("[%s] Fail to encode token, err=%w", op, err)
	}
	if err := s.client.Set(ctx, s.key(kind, token), b, ttl).Err(); err != nil {
		return "", fmt.Errorf("[%s] Fail to store token, err=%w", op, err)
	}
	return token, nil
}

func (s *TokenStore) decode(op string, b []byte, err error) (string, error) {
	if errors.Is(err, redis.Nil) {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("[%s] Fail to read token, err=%w", op, err)
	}
	record, err := Decode[tokenRecord](b)
	if err != nil {
		return "", fmt.Errorf("[%s] Fail to decode token, err=%w", op, err)
	}
	return record.Subject, nil
}

// Peek 讀取 token 對應的 subject，不會使其失效
func (s *TokenStore) Peek(ctx context.Context, kind, token string) (string, error) {
	const op = "redis.TokenStore.Peek"
	b, err := s.client.Get(ctx, s.key(kind, token)).Bytes()
	return s.decode(op, b, err)
}

// Consume 讀取並刪除 token，同一個 token 只能成功一次
func (s *TokenStore) Consume(ctx context.Context, kind, token string) (string, error) {
	const op = "redis.TokenStore.Consume"
	b, err := s.client.GetDel(ctx, s.key(kind, token)).Bytes()
	return s.decode(op, b, err)
}

// Revoke 刪除 token
func (s *TokenStore) Revoke(ctx context.Context, kind, token string) error {
	const op = "redis.TokenStore.Revoke"
	if err := s.client.Del(ctx, s.key(kind, token)).Err(); err != nil {
		return fmt.Errorf("[%s] Fail to revoke token, err=%w", op, err)
	}
	return nil
}
