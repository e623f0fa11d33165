package session

import (
	"context"
	"fmt"
	"maps"

	"github.com/google/uuid"
)

// cookieSession 是 middleware 放進 context 的 ISession。
// 資料在第一次 Load 時讀入，只有被修改過才會在 Save 時寫回。
type cookieSession struct {
	ctx   context.Context
	store IStore

	id      string
	staleID string // Regenerate 之前的 ID，Save 時刪除
	data    map[string]string
	dirty   bool

	onRegenerate func(id string)
}

// NewSession 建立 id 對應的 session
func NewSession(ctx context.Context, id string, store IStore) ISession {
	return newSession(ctx, id, store, nil)
}

func newSession(ctx context.Context, id string, store IStore, onRegenerate func(string)) *cookieSession {
	if ctx == nil {
		ctx = context.Background()
	}
	return &cookieSession{ctx: ctx, store: store, id: id, onRegenerate: onRegenerate}
}

func (s *cookieSession) ID() string {
	return s.id
}

func (s *cookieSession) Load() error {
	const op = "session.Load"
	if s.data != nil {
		return nil
	}
	data, err := s.store.Load(s.ctx, s.id)
	if err != nil {
		return fmt.Errorf("[%s] Fail to load session %s, err=%w", op, s.id, err)
	}
	if data == nil {
		data = map[string]string{}
	}
	s.data = data
	return nil
}

func (s *cookieSession) Get(key string) string {
	return s.data[key]
}

func (s *cookieSession) Set(key, value string) {
	if s.data == nil {
		s.data = map[string]string{}
	}
	if old, ok := s.data[key]; ok && old == value {
		return
	}
	s.data[key] = value
	s.dirty = true
}

func (s *cookieSession) Delete(key string) {
	if _, ok := s.data[key]; !ok {
		return
	}
	delete(s.data, key)
	s.dirty = true
}

func (s *cookieSession) Clear() {
	s.dirty = s.dirty || len(s.data) > 0
	s.data = map[string]string{}
}

// Regenerate 登入後更換 ID 以避免 session fixation
func (s *cookieSession) Regenerate() {
	if s.staleID == "" {
		s.staleID = s.id
	}
	s.id = uuid.NewString()
	s.dirty = true
	if s.onRegenerate != nil {
		s.onRegenerate(s.id)
	}
}

// Save 寫回修改；資料為空時 store 會刪除該 session
func (s *cookieSession) Save() error {
	const op = "session.Save"
	if s.staleID != "" {
		if err := s.store.Save(s.ctx, s.staleID, nil); err != nil {
			return fmt.Errorf("[%s] Fail to drop stale session %s, err=%w", op, s.staleID, err)
		}
		s.staleID = ""
	}
	if !s.dirty {
		return nil
	}
	if err := s.store.Save(s.ctx, s.id, maps.Clone(s.data)); err != nil {
		return fmt.Errorf("[%s] Fail to save session %s, err=%w", op, s.id, err)
	}
	s.dirty = false
	return nil
}
