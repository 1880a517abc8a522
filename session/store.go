package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/kochabx/blogkit/log"
	"github.com/kochabx/blogkit/store/kv"
)

// DefaultKey 会话在 kv 里的键
const DefaultKey = "session"

// Listener 会话变化回调，prev 和 next 可能是零值
type Listener func(prev, next Session)

// TokenStore 持久化的单会话单元。读内存，写穿到 kv.Store，变更同步通知订阅者
type TokenStore struct {
	// writeMu 串行化写操作，保证最后落盘的和内存里的一致
	writeMu sync.Mutex
	mu      sync.RWMutex
	cur     Session

	store  kv.Store
	key    string
	logger *log.Logger

	listenersMu sync.Mutex
	listeners   map[uint64]Listener
	nextID      uint64
}

type StoreOption func(*TokenStore)

func WithKey(key string) StoreOption {
	return func(s *TokenStore) {
		if key != "" {
			s.key = key
		}
	}
}

func WithStoreLogger(l *log.Logger) StoreOption {
	return func(s *TokenStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewTokenStore store 为 nil 时只保存在内存里
func NewTokenStore(store kv.Store, opts ...StoreOption) *TokenStore {
	s := &TokenStore{
		store:     store,
		key:       DefaultKey,
		logger:    log.G,
		listeners: make(map[uint64]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load 启动时读取持久化的会话。损坏的数据按匿名处理并删除
func (s *TokenStore) Load(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	data, err := s.store.Get(ctx, s.key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil || (sess.Token != "" && sess.ExpiresAt.IsZero()) {
		s.logger.Warn().Err(err).Str("key", s.key).Msg("discarding corrupt persisted session")
		if rerr := s.store.Remove(ctx, s.key); rerr != nil && !errors.Is(rerr, kv.ErrNotFound) {
			return fmt.Errorf("remove corrupt session: %w", rerr)
		}
		return nil
	}

	s.swap(sess)
	return nil
}

// Get 当前会话，不访问存储
func (s *TokenStore) Get() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Set 替换会话。内存立即生效，持久化失败时返回错误
func (s *TokenStore) Set(ctx context.Context, sess Session) error {
	if sess.Token == "" {
		return s.Clear(ctx)
	}
	if sess.ExpiresAt.IsZero() {
		return errors.New("session: token without expiry")
	}

	s.writeMu.Lock()
	prev := s.swap(sess)
	err := s.persist(ctx, sess)
	s.writeMu.Unlock()

	s.notify(prev, sess)
	return err
}

// Clear 清除会话
func (s *TokenStore) Clear(ctx context.Context) error {
	s.writeMu.Lock()
	prev := s.swap(Session{})
	err := s.persist(ctx, Session{})
	s.writeMu.Unlock()

	if !prev.IsZero() {
		s.notify(prev, Session{})
	}
	return err
}

// CompareAndSet 只有当前 token 仍是 old 时才替换，返回是否替换
func (s *TokenStore) CompareAndSet(ctx context.Context, old string, sess Session) (bool, error) {
	s.writeMu.Lock()
	if s.Get().Token != old {
		s.writeMu.Unlock()
		return false, nil
	}
	prev := s.swap(sess)
	err := s.persist(ctx, sess)
	s.writeMu.Unlock()

	if !sameSession(prev, sess) {
		s.notify(prev, sess)
	}
	return true, err
}

// Apply 采纳其他进程写入存储的值，不回写。data 为 nil 表示会话已被删除
func (s *TokenStore) Apply(data []byte) error {
	var next Session
	if data != nil {
		if err := json.Unmarshal(data, &next); err != nil {
			return fmt.Errorf("decode session: %w", err)
		}
		if next.Token != "" && next.ExpiresAt.IsZero() {
			return errors.New("session: token without expiry")
		}
	}

	s.writeMu.Lock()
	prev := s.swap(next)
	s.writeMu.Unlock()

	// 自己的写入会经 watch 回显，值相同时不通知
	if !sameSession(prev, next) {
		s.notify(prev, next)
	}
	return nil
}

func sameSession(a, b Session) bool {
	return a.Token == b.Token && a.ExpiresAt.Equal(b.ExpiresAt)
}

// Subscribe 注册变更回调，回调在写操作的调用方 goroutine 里同步执行
func (s *TokenStore) Subscribe(l Listener) (cancel func()) {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			delete(s.listeners, id)
			s.listenersMu.Unlock()
		})
	}
}

func (s *TokenStore) swap(next Session) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.cur
	s.cur = next
	return prev
}

func (s *TokenStore) persist(ctx context.Context, sess Session) error {
	if s.store == nil {
		return nil
	}

	if sess.IsZero() {
		if err := s.store.Remove(ctx, s.key); err != nil && !errors.Is(err, kv.ErrNotFound) {
			return fmt.Errorf("remove session: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.store.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

func (s *TokenStore) notify(prev, next Session) {
	s.listenersMu.Lock()
	ls := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		ls = append(ls, l)
	}
	s.listenersMu.Unlock()

	for _, l := range ls {
		l(prev, next)
	}
}
