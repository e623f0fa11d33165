package api

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)}
}

// allowN 連續請求 n 次，回傳放行的次數
func allowN(l *ipLimiters, ip string, n int) int {
	allowed := 0
	for i := 0; i < n; i++ {
		if l.allow(ip) {
			allowed++
		}
	}
	return allowed
}

func TestIPLimiters_BurstPerIP(t *testing.T) {
	clock := newFakeClock()
	l := newIPLimiters(rate.Limit(0.001), 2, clock.now)

	assert.Equal(t, 2, allowN(l, "10.0.0.1", 3))
	assert.Equal(t, 2, allowN(l, "10.0.0.2", 3))
	assert.Equal(t, 2, l.size())
}

func TestIPLimiters_SweepsIdleBuckets(t *testing.T) {
	clock := newFakeClock()
	l := newIPLimiters(rate.Limit(1), 1, clock.now)

	for i := 0; i < 1000; i++ {
		l.allow(fmt.Sprintf("10.0.%d.%d", i/256, i%256))
	}
	assert.Equal(t, 1000, l.size())

	clock.advance(minBucketIdle)
	assert.True(t, l.allow("192.168.0.1"))
	assert.Equal(t, 1, l.size())
}

func TestIPLimiters_KeepsRecentBuckets(t *testing.T) {
	clock := newFakeClock()
	l := newIPLimiters(rate.Limit(1), 1, clock.now)

	l.allow("10.0.0.1")
	clock.advance(minBucketIdle / 2)
	l.allow("10.0.0.2")
	clock.advance(minBucketIdle / 2)

	// 10.0.0.1 閒置已滿，10.0.0.2 還在保留期內
	l.allow("10.0.0.3")
	assert.Equal(t, 2, l.size())
	_, ok := l.buckets["10.0.0.2"]
	assert.True(t, ok)
	_, ok = l.buckets["10.0.0.1"]
	assert.False(t, ok)
}

func TestIPLimiters_IdleCoversRefill(t *testing.T) {
	clock := newFakeClock()
	// 兩個 token 要 2000 秒才回滿，比最短保留時間長
	l := newIPLimiters(rate.Limit(0.001), 2, clock.now)
	assert.Equal(t, 2000*time.Second, l.idle)

	assert.Equal(t, 2, allowN(l, "10.0.0.1", 3))
	clock.advance(minBucketIdle)
	l.allow("10.0.0.2")
	// 尚未回滿的 bucket 不能被清掉，否則等於重置限制
	assert.False(t, l.allow("10.0.0.1"))
	assert.Equal(t, 2, l.size())

	clock.advance(2000 * time.Second)
	assert.True(t, l.allow("10.0.0.1"))
}
