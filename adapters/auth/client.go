package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"campusmart/adapters/notify"
	"campusmart/adapters/session"
	"campusmart/backend"
)

// session 在 IStore 中的欄位
const (
	fieldAccessToken    = "access_token"
	fieldRefreshToken   = "refresh_token"
	fieldExpiresAt      = "expires_at"
	fieldUserID         = "user_id"
	fieldEmail          = "email"
	fieldNickname       = "nickname"
	fieldEmailConfirmed = "email_confirmed"
)

type stateChange struct {
	event   backend.AuthEvent
	session *backend.Session
}

// Client 以 Service 實作 backend.AuthClient，登入狀態保存在 IStore 的 profile 底下。
// 同一個 profile 可以跨行程共用，例如 CLI 的多次執行。
type Client struct {
	service *Service
	store   session.IStore
	profile string
	hub     *notify.Hub[stateChange]
	now     func() time.Time
	logger  *zap.Logger
	mu      sync.Mutex
}

type ClientOption func(*Client)

func WithClientLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithClientClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

var _ backend.AuthClient = (*Client)(nil)

func NewClient(service *Service, store session.IStore, profile string, opts ...ClientOption) *Client {
	c := &Client{
		service: service,
		store:   store,
		profile: profile,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.hub = notify.NewHub(notify.WithLogger[stateChange](c.logger))
	return c
}

func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]string) (backend.SignUpResult, error) {
	result, err := c.service.SignUp(ctx, email, password, metadata["nickname"])
	if err != nil {
		return backend.SignUpResult{}, err
	}
	if result.Session != nil {
		if err := c.persist(ctx, result.Session, backend.EventSignedIn); err != nil {
			return backend.SignUpResult{}, err
		}
	}
	return result, nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*backend.Session, error) {
	s, err := c.service.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := c.persist(ctx, s, backend.EventSignedIn); err != nil {
		return nil, err
	}
	return s, nil
}

// SignOut 撤銷 refresh token 並清除本地 session；沒有登入時也會成功
func (c *Client) SignOut(ctx context.Context) error {
	const op = "auth.Client.SignOut"
	c.mu.Lock()
	defer c.mu.Unlock()

	current, err := c.load(ctx)
	if err != nil {
		return err
	}
	if current != nil {
		if err := c.service.SignOut(ctx, current.RefreshToken); err != nil {
			c.logger.Warn("Fail to revoke refresh token", zap.String("op", op), zap.Error(err))
		}
	}
	if err := c.store.Save(ctx, c.profile, nil); err != nil {
		return fmt.Errorf("[%s] Fail to clear session, err=%w", op, err)
	}
	c.hub.Publish(stateChange{event: backend.EventSignedOut})
	return nil
}

// GetSession 回傳目前的 session；access token 過期時嘗試以 refresh token 換發
func (c *Client) GetSession(ctx context.Context) (*backend.Session, error) {
	const op = "auth.Client.GetSession"
	c.mu.Lock()
	defer c.mu.Unlock()

	current, err := c.load(ctx)
	if err != nil || current == nil {
		return nil, err
	}
	if !current.Expired(c.now()) {
		return current, nil
	}

	refreshed, err := c.service.Refresh(ctx, current.RefreshToken)
	if errors.Is(err, backend.ErrSessionExpired) {
		c.logger.Info("Session expired", zap.String("userID", current.User.ID))
		if err := c.store.Save(ctx, c.profile, nil); err != nil {
			return nil, fmt.Errorf("[%s] Fail to clear session, err=%w", op, err)
		}
		c.hub.Publish(stateChange{event: backend.EventSignedOut})
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := c.save(ctx, refreshed); err != nil {
		return nil, err
	}
	c.hub.Publish(stateChange{event: backend.EventTokenRefreshed, session: refreshed})
	return refreshed, nil
}

func (c *Client) OnAuthStateChange(listener backend.AuthListener) backend.Subscription {
	return c.hub.Subscribe(func(change stateChange) {
		listener(change.event, change.session)
	})
}

func (c *Client) ResendSignupVerification(ctx context.Context, email string) error {
	return c.service.ResendSignupVerification(ctx, email)
}

// ConfirmEmail 完成信箱驗證並登入
func (c *Client) ConfirmEmail(ctx context.Context, token string) (*backend.Session, error) {
	s, err := c.service.ConfirmEmail(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := c.persist(ctx, s, backend.EventSignedIn); err != nil {
		return nil, err
	}
	return s, nil
}

// Close 停止事件通知，等待已排入的事件送完
func (c *Client) Close() {
	c.hub.Close()
}

func (c *Client) persist(ctx context.Context, s *backend.Session, event backend.AuthEvent) error {
	c.mu.Lock()
	err := c.save(ctx, s)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.hub.Publish(stateChange{event: event, session: s})
	return nil
}

func (c *Client) save(ctx context.Context, s *backend.Session) error {
	const op = "auth.Client.save"
	data := map[string]string{
		fieldAccessToken:    s.AccessToken,
		fieldRefreshToken:   s.RefreshToken,
		fieldExpiresAt:      s.ExpiresAt.UTC().Format(time.RFC3339Nano),
		fieldUserID:         s.User.ID,
		fieldEmail:          s.User.Email,
		fieldNickname:       s.User.Nickname,
		fieldEmailConfirmed: strconv.FormatBool(s.User.EmailConfirmed),
	}
	if err := c.store.Save(ctx, c.profile, data); err != nil {
		return fmt.Errorf("[%s] Fail to save session, err=%w", op, err)
	}
	return nil
}

func (c *Client) load(ctx context.Context) (*backend.Session, error) {
	const op = "auth.Client.load"
	data, err := c.store.Load(ctx, c.profile)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to load session, err=%w", op, err)
	}
	if data[fieldAccessToken] == "" || data[fieldUserID] == "" {
		return nil, nil
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, data[fieldExpiresAt])
	if err != nil {
		c.logger.Warn("Stored session has invalid expiry", zap.String("op", op), zap.Error(err))
	}
	confirmed, _ := strconv.ParseBool(data[fieldEmailConfirmed])
	return &backend.Session{
		AccessToken:  data[fieldAccessToken],
		RefreshToken: data[fieldRefreshToken],
		ExpiresAt:    expiresAt,
		User: backend.User{
			ID:             data[fieldUserID],
			Email:          data[fieldEmail],
			Nickname:       data[fieldNickname],
			EmailConfirmed: confirmed,
		},
	}, nil
}
