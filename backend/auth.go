//go:generate mockgen -package=backend -destination=mock_auth.go -source=auth.go

package backend

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrEmailNotConfirmed  = errors.New("email not confirmed")
	ErrEmailTaken         = errors.New("email already registered")
	ErrSessionExpired     = errors.New("session expired")
)

// AuthEvent 是登入狀態變化的通知種類
type AuthEvent string

const (
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
)

// User 是 auth 平台上的使用者
type User struct {
	ID             string `json:"id" msgpack:"id"`
	Email          string `json:"email" msgpack:"email"`
	Nickname       string `json:"nickname,omitempty" msgpack:"nickname"`
	EmailConfirmed bool   `json:"email_confirmed" msgpack:"email_confirmed"`
}

// Session 代表一次登入
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired 判斷 access token 是否已過期
func (s *Session) Expired(now time.Time) bool {
	return s == nil || !now.Before(s.ExpiresAt)
}

// SignUpResult 註冊結果；需要信箱驗證時 Session 為 nil
type SignUpResult struct {
	User    User
	Session *Session
}

// Subscription 代表一個登入狀態變化的訂閱
type Subscription interface {
	Unsubscribe()
}

// AuthListener 接收登入狀態變化；signed out 時 session 為 nil
type AuthListener func(event AuthEvent, session *Session)

// AuthClient 是身分驗證能力
type AuthClient interface {
	SignUp(ctx context.Context, email, password string, metadata map[string]string) (SignUpResult, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error
	// GetSession 回傳目前的 session，沒有登入時回傳 nil, nil
	GetSession(ctx context.Context) (*Session, error)
	OnAuthStateChange(listener AuthListener) Subscription
	ResendSignupVerification(ctx context.Context, email string) error
}
