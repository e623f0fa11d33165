// Package identity 追蹤目前登入的身分，啟動時向 auth 查詢 session，
// 之後依 auth 狀態變化更新。
package identity

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"campusmart/backend"
	"campusmart/market"
)

// Context 是行程內唯一的身分狀態，建立後注入給需要的元件
type Context struct {
	auth   backend.AuthClient
	logger *zap.Logger

	mu      sync.RWMutex
	current market.Identity
	loading bool
	closed  bool
	// version 在每次收到 auth 事件時遞增，用來判斷初始查詢的結果是否已過時
	version uint64
	changed chan struct{}
	ready   chan struct{}

	sub       backend.Subscription
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

type Option func(*Context)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Context) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New 訂閱 auth 狀態變化，並在背景查詢目前的 session
func New(ctx context.Context, auth backend.AuthClient, opts ...Option) *Context {
	c := &Context{
		auth:    auth,
		logger:  zap.NewNop(),
		current: market.Anonymous(),
		loading: true,
		changed: make(chan struct{}),
		ready:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	// 先訂閱再查詢，查詢期間發生的事件才不會遺失
	c.sub = auth.OnAuthStateChange(c.onAuthStateChange)

	resolveCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.resolve(resolveCtx)
	}()
	return c
}

func (c *Context) resolve(ctx context.Context) {
	c.mu.RLock()
	version := c.version
	c.mu.RUnlock()

	session, err := c.auth.GetSession(ctx)
	if err != nil {
		c.logger.Warn("Fail to resolve initial session", zap.Error(err))
		session = nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.version == version && !c.closed {
		c.current = market.IdentityFromSession(session)
	}
	c.finishLoading()
	c.notify()
}

func (c *Context) onAuthStateChange(event backend.AuthEvent, session *backend.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.version++
	if event == backend.EventSignedOut {
		session = nil
	}
	c.current = market.IdentityFromSession(session)
	c.logger.Debug("Auth state changed", zap.String("event", string(event)), zap.Stringer("identity", c.current))
	c.finishLoading()
	c.notify()
}

// finishLoading 需持有寫鎖
func (c *Context) finishLoading() {
	if c.loading {
		c.loading = false
		close(c.ready)
	}
}

// notify 需持有寫鎖
func (c *Context) notify() {
	close(c.changed)
	c.changed = make(chan struct{})
}

// Current 回傳目前的身分
func (c *Context) Current() market.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Loading 在初始 session 查詢完成前為 true
func (c *Context) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// Ready 在初始 session 查詢完成後關閉
func (c *Context) Ready() <-chan struct{} {
	return c.ready
}

// Changed 回傳的 channel 會在下一次身分更新時關閉
func (c *Context) Changed() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.changed
}

// Wait 等待初始 session 查詢完成並回傳身分
func (c *Context) Wait(ctx context.Context) (market.Identity, error) {
	select {
	case <-c.ready:
		return c.Current(), nil
	case <-ctx.Done():
		return market.Anonymous(), ctx.Err()
	}
}

// Logout 要求登出並等待登出通知清除身分，ctx 結束時提前返回
func (c *Context) Logout(ctx context.Context) error {
	if err := c.auth.SignOut(ctx); err != nil {
		return err
	}
	for {
		c.mu.RLock()
		authenticated := c.current.IsAuthenticated()
		changed := c.changed
		c.mu.RUnlock()
		if !authenticated {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close 取消訂閱並停止背景查詢，可以重複呼叫
func (c *Context) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.sub.Unsubscribe()
		c.cancel()
		c.wg.Wait()
	})
}
