package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestStore_Load(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(mock redismock.ClientMock)
		session  string
		expected map[string]string
		wantErr  bool
	}{
		{
			name: "success",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectHGetAll("test:cli-default").SetVal(map[string]string{
					"access_token":  "a.b.c",
					"refresh_token": "r1",
				})
			},
			session: "cli-default",
			expected: map[string]string{
				"access_token":  "a.b.c",
				"refresh_token": "r1",
			},
		},
		{
			name: "empty_session",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectHGetAll("test:empty").SetVal(map[string]string{})
			},
			session:  "empty",
			expected: map[string]string{},
		},
		{
			name: "redis_error",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectHGetAll("test:cli-default").
					SetErr(errors.New("redis connection error"))
			},
			session:  "cli-default",
			wantErr:  true,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, mock, cleanup := setupTest(t)
			defer cleanup()

			tt.setup(mock)

			store := NewStore(client, WithStorePrefix("test:"))

			got, err := store.Load(context.Background(), tt.session)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestStore_Save(t *testing.T) {
	tests := []struct {
		name    string
		ttl     time.Duration
		setup   func(mock redismock.ClientMock)
		session string
		data    map[string]string
		wantErr bool
	}{
		{
			name: "success",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectEvalSha(
					saveScript.Hash(),
					[]string{"test:session1"},
					[]interface{}{int64(0), "access_token", "a.b.c"},
				).SetVal(1)
			},
			session: "session1",
			data: map[string]string{
				"access_token": "a.b.c",
			},
		},
		{
			name: "with_ttl",
			ttl:  time.Hour,
			setup: func(mock redismock.ClientMock) {
				mock.ExpectEvalSha(
					saveScript.Hash(),
					[]string{"test:session1"},
					[]interface{}{int64(3600), "access_token", "a.b.c"},
				).SetVal(1)
			},
			session: "session1",
			data: map[string]string{
				"access_token": "a.b.c",
			},
		},
		{
			name: "empty_data",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectEvalSha(
					saveScript.Hash(),
					[]string{"test:session1"},
					[]interface{}{int64(0)},
				).SetVal(1)
			},
			session: "session1",
			data:    map[string]string{},
		},
		{
			name: "redis_error",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectEvalSha(
					saveScript.Hash(),
					[]string{"test:session1"},
					[]interface{}{int64(0), "access_token", "a.b.c"},
				).SetErr(redis.ErrClosed)
			},
			session: "session1",
			data: map[string]string{
				"access_token": "a.b.c",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, mock, cleanup := setupTest(t)
			defer cleanup()

			tt.setup(mock)

			store := NewStore(client, WithStorePrefix("test:"), WithStoreTTL(tt.ttl))

			err := store.Save(context.Background(), tt.session, tt.data)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestStore_SaveAgainstRedis(t *testing.T) {
	client := setupMiniredis(t)
	store := NewStore(client, WithStorePrefix("sess:"), WithStoreTTL(time.Minute))
	ctx := context.Background()

	assert.NoError(t, store.Save(ctx, "s1", map[string]string{"a": "1", "b": "2"}))
	got, err := store.Load(ctx, "s1")
	assert.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, got)
	assert.Greater(t, client.TTL(ctx, "sess:s1").Val(), time.Duration(0))

	// 覆寫會移除舊欄位
	assert.NoError(t, store.Save(ctx, "s1", map[string]string{"b": "3"}))
	got, err = store.Load(ctx, "s1")
	assert.NoError(t, err)
	assert.Equal(t, map[string]string{"b": "3"}, got)

	// 空資料等同刪除
	assert.NoError(t, store.Save(ctx, "s1", nil))
	got, err = store.Load(ctx, "s1")
	assert.NoError(t, err)
	assert.Empty(t, got)
}
