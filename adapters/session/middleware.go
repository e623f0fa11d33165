package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const DefaultContextKey = "campusmart-session-context"

var ErrSessionNotFound = errors.New("session not found")

// Config 是 session middleware 的設定。
// Cookie 是 session cookie 的樣板，Value 由 middleware 填入。
type Config struct {
	Cookie     http.Cookie
	ContextKey string
}

type Option func(*Config)

func WithCookieName(name string) Option {
	return func(c *Config) {
		c.Cookie.Name = name
	}
}

func WithCookieMaxAge(maxAge time.Duration) Option {
	return func(c *Config) {
		c.Cookie.MaxAge = int(maxAge / time.Second)
	}
}

// WithCookieSecure 本機以 http 開發時需要關閉
func WithCookieSecure(secure bool) Option {
	return func(c *Config) {
		c.Cookie.Secure = secure
	}
}

func WithContextKey(key string) Option {
	return func(c *Config) {
		c.ContextKey = key
	}
}

func newConfig(opts []Option) Config {
	cfg := Config{
		ContextKey: DefaultContextKey,
		Cookie: http.Cookie{
			Name:     "session",
			Path:     "/",
			MaxAge:   int((24 * time.Hour) / time.Second),
			Secure:   true,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// GinMiddleware 為每個請求準備 session；沒有 cookie 時配發新的 id。
// session 資料在第一次 GetSession 時才會從 store 載入。
func GinMiddleware(store IStore, opts ...Option) gin.HandlerFunc {
	cfg := newConfig(opts)
	return func(c *gin.Context) {
		id := ""
		if cookie, err := c.Request.Cookie(cfg.Cookie.Name); err == nil {
			id = cookie.Value
		}
		if id == "" {
			id = uuid.NewString()
		}

		// cookie 要在 handler 寫出 response 之前設定，Regenerate 時覆蓋
		issue := func(id string) {
			replaceCookie(c.Writer.Header(), cfg.Cookie, id)
		}
		issue(id)
		c.Set(cfg.ContextKey, newSession(c.Request.Context(), id, store, issue))
		c.Next()
	}
}

// replaceCookie 移除同名的 Set-Cookie 後再加入新的值
func replaceCookie(header http.Header, tmpl http.Cookie, value string) {
	prefix := tmpl.Name + "="
	var kept []string
	for _, v := range header.Values("Set-Cookie") {
		if !strings.HasPrefix(v, prefix) {
			kept = append(kept, v)
		}
	}
	header.Del("Set-Cookie")
	for _, v := range kept {
		header.Add("Set-Cookie", v)
	}
	tmpl.Value = value
	header.Add("Set-Cookie", tmpl.String())
}

// GetSession 取得 middleware 放入的 session 並載入資料
func GetSession(ctx context.Context, opts ...Option) (ISession, error) {
	const op = "session.GetSession"
	cfg := newConfig(opts)
	v := ctx.Value(cfg.ContextKey)
	if v == nil {
		return nil, ErrSessionNotFound
	}
	s, ok := v.(ISession)
	if !ok {
		return nil, fmt.Errorf("[%s] Unexpected session type %T", op, v)
	}
	if err := s.Load(); err != nil {
		return nil, fmt.Errorf("[%s] Fail to load session, err=%w", op, err)
	}
	return s, nil
}
