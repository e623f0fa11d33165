package market

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"campusmart/backend"
)

// GuestPrefix 是訪客 ID 的前綴
const GuestPrefix = "guest_"

// IdentityKind 區分匿名、已登入與訪客
type IdentityKind int

const (
	KindAnonymous IdentityKind = iota
	KindAuthenticated
	KindGuest
)

// Identity 是目前操作者的身分
type Identity struct {
	Kind     IdentityKind
	ID       string
	Email    string
	Nickname string
}

// Anonymous 回傳沒有 session 的身分
func Anonymous() Identity {
	return Identity{Kind: KindAnonymous}
}

// Authenticated 回傳已登入的身分
func Authenticated(id, email string) Identity {
	return Identity{Kind: KindAuthenticated, ID: id, Email: email}
}

// Guest 以新的訪客 ID 建立訪客身分
func Guest(now time.Time) Identity {
	return Identity{Kind: KindGuest, ID: NewGuestID(now)}
}

// IdentityFromSession 由 auth session 推導身分，nil 代表匿名
func IdentityFromSession(s *backend.Session) Identity {
	if s == nil || s.User.ID == "" {
		return Anonymous()
	}
	return Identity{
		Kind:     KindAuthenticated,
		ID:       s.User.ID,
		Email:    s.User.Email,
		Nickname: s.User.Nickname,
	}
}

// IsAuthenticated 判斷是否為有效的已登入身分
func (i Identity) IsAuthenticated() bool {
	return i.Kind == KindAuthenticated && i.ID != "" && !IsGuestID(i.ID)
}

func (i Identity) String() string {
	switch i.Kind {
	case KindAuthenticated:
		return i.Email
	case KindGuest:
		return i.ID
	}
	return "anonymous"
}

// NewGuestID 產生帶時間戳記的訪客 ID，字典序即建立順序
func NewGuestID(now time.Time) string {
	return GuestPrefix + ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
}

// IsGuestID 判斷 ID 是否為訪客 ID
func IsGuestID(id string) bool {
	return strings.HasPrefix(id, GuestPrefix)
}
