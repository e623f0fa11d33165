package auth_test

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"campusmart/adapters/auth"
	redisAdapter "campusmart/adapters/redis"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingMailer struct {
	mu    sync.Mutex
	links map[string][]string
}

func (m *recordingMailer) SendVerification(_ context.Context, email, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.links == nil {
		m.links = make(map[string][]string)
	}
	m.links[email] = append(m.links[email], link)
	return nil
}

func (m *recordingMailer) last(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	links := m.links[email]
	if len(links) == 0 {
		return ""
	}
	return links[len(links)-1]
}

var dbSeq atomic.Int64

type fixture struct {
	db      *gorm.DB
	redis   *redis.Client
	service *auth.Service
	mailer  *recordingMailer
	clock   *clock
	store   *redisAdapter.Store
}

func newFixture(t *testing.T, autoConfirm bool) *fixture {
	t.Helper()

	name := fmt.Sprintf("%s_%d", strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()), dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger.Discard,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	schema, err := os.ReadFile("../../models/testdata/sqlite.sql")
	require.NoError(t, err)
	require.NoError(t, db.Exec(string(schema)).Error)
	t.Cleanup(func() { sqlDB.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	_, key, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	f := &fixture{
		db:     db,
		redis:  client,
		mailer: &recordingMailer{},
		clock:  &clock{now: time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)},
	}
	f.service, err = auth.NewService(db, redisAdapter.NewTokenStore(client, redisAdapter.WithTokenPrefix("test:")), auth.Config{
		PrivateKey:     key,
		AccessTokenTTL: time.Hour,
		AutoConfirm:    autoConfirm,
		ConfirmURL:     "https://market.example/auth/confirm",
	}, auth.WithMailer(f.mailer), auth.WithClock(f.clock.Now))
	require.NoError(t, err)
	f.store = redisAdapter.NewStore(client, redisAdapter.WithStorePrefix("test:session:")).(*redisAdapter.Store)
	return f
}

// tokenFromLink 從驗證連結取出 token
func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	_, token, ok := strings.Cut(link, "token=")
	require.True(t, ok, "link %q has no token", link)
	return token
}
