// Package notify 把事件廣播給多個訂閱者，每個訂閱者依序收到事件，
// 發布端不會被慢的訂閱者阻塞。
package notify

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/smallnest/chanx"
	"go.uber.org/zap"
)

const defaultBufferSize = 16

// Subscription 代表一個訂閱，Unsubscribe 可以重複呼叫
type Subscription interface {
	Unsubscribe()
}

type subscriber[T any] struct {
	hub      *Hub[T]
	queue    *chanx.UnboundedChan[T]
	done     chan struct{}
	handler  func(T)
	stopped  atomic.Bool
	stopOnce sync.Once
}

// Hub 管理所有訂閱者並將事件廣播出去
type Hub[T any] struct {
	subscribers map[*subscriber[T]]struct{}
	mu          sync.RWMutex
	closed      bool
	logger      *zap.Logger
}

type Option[T any] func(*Hub[T])

func WithLogger[T any](logger *zap.Logger) Option[T] {
	return func(h *Hub[T]) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func NewHub[T any](opts ...Option[T]) *Hub[T] {
	h := &Hub[T]{
		subscribers: make(map[*subscriber[T]]struct{}),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe 註冊 handler，handler 在專屬的 goroutine 依發布順序執行
func (h *Hub[T]) Subscribe(handler func(T)) Subscription {
	s := &subscriber[T]{
		hub:     h,
		queue:   chanx.NewUnboundedChan[T](context.Background(), defaultBufferSize),
		done:    make(chan struct{}),
		handler: handler,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		s.stopped.Store(true)
		close(s.queue.In)
		close(s.done)
		return s
	}
	h.subscribers[s] = struct{}{}
	h.mu.Unlock()

	go s.deliver()
	return s
}

// Publish 將事件放進每個訂閱者的佇列
func (h *Hub[T]) Publish(event T) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for s := range h.subscribers {
		s.queue.In <- event
	}
}

// Len 回傳目前的訂閱者數量
func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close 取消所有訂閱，等待已排入的事件送完；不可在 handler 內呼叫
func (h *Hub[T]) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := make([]*subscriber[T], 0, len(h.subscribers))
	for s := range h.subscribers {
		subs = append(subs, s)
	}
	clear(h.subscribers)
	h.mu.Unlock()

	for _, s := range subs {
		s.closeQueue()
	}
	for _, s := range subs {
		<-s.done
	}
}

func (s *subscriber[T]) deliver() {
	defer close(s.done)
	for event := range s.queue.Out {
		if s.stopped.Load() {
			continue
		}
		s.invoke(event)
	}
}

func (s *subscriber[T]) invoke(event T) {
	defer func() {
		if r := recover(); r != nil {
			s.hub.logger.Error("subscriber panicked", zap.Error(fmt.Errorf("%v", r)))
		}
	}()
	s.handler(event)
}

func (s *subscriber[T]) closeQueue() {
	s.stopOnce.Do(func() {
		close(s.queue.In)
	})
}

// Unsubscribe 移除訂閱，之後不會再呼叫 handler（正在執行的那一次除外）。
// 可以在 handler 內呼叫。
func (s *subscriber[T]) Unsubscribe() {
	if s.stopped.Swap(true) {
		return
	}
	s.hub.mu.Lock()
	delete(s.hub.subscribers, s)
	s.hub.mu.Unlock()
	s.closeQueue()
}
