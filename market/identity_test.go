package market_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"campusmart/backend"
	"campusmart/market"
)

func TestNewGuestID(t *testing.T) {
	a := market.NewGuestID(now)
	b := market.NewGuestID(now.Add(time.Millisecond))
	assert.True(t, strings.HasPrefix(a, market.GuestPrefix))
	assert.True(t, market.IsGuestID(a))
	assert.NotEqual(t, a, b)
	// 時間較晚的 ID 字典序較大
	assert.Less(t, a, b)
}

func TestIdentityFromSession(t *testing.T) {
	assert.Equal(t, market.Anonymous(), market.IdentityFromSession(nil))

	id := market.IdentityFromSession(&backend.Session{User: backend.User{ID: "u1", Email: "u1@campus.edu", Nickname: "Amy"}})
	assert.True(t, id.IsAuthenticated())
	assert.Equal(t, "u1", id.ID)
	assert.Equal(t, "Amy", id.Nickname)
}

func TestIdentity_IsAuthenticated(t *testing.T) {
	assert.False(t, market.Anonymous().IsAuthenticated())
	assert.False(t, market.Guest(now).IsAuthenticated())
	assert.True(t, market.Authenticated("u1", "").IsAuthenticated())
}
