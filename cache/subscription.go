package cache

import (
	"context"
	"sync"
)

// Subscription 对一个条目的订阅。Unsubscribe 之后 Updates 会被关闭
type Subscription struct {
	cache   *Cache
	key     Key
	id      uint64
	updates chan Snapshot
	once    sync.Once
}

func newSubscription(c *Cache, key Key, id uint64) *Subscription {
	return &Subscription{
		cache:   c,
		key:     key,
		id:      id,
		updates: make(chan Snapshot, 1),
	}
}

func (s *Subscription) Key() Key {
	return s.key
}

// Current 当前快照，不阻塞
func (s *Subscription) Current() Snapshot {
	snap, _ := s.cache.Snapshot(s.key)
	return snap
}

// Updates 状态变化通知。缓冲为 1，消费慢时只保留最新的快照
func (s *Subscription) Updates() <-chan Snapshot {
	return s.updates
}

// Wait 阻塞到条目有结果且没有获取在进行，返回快照和获取错误
func (s *Subscription) Wait(ctx context.Context) (Snapshot, error) {
	for {
		snap, changed, ok := s.cache.watch(s)
		if !ok {
			return snap, ErrUnsubscribed
		}
		if snap.Settled() {
			return snap, snap.Err
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
}

// Unsubscribe 可重复调用。共享的获取不会因此中止
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.cache.unsubscribe(s)
	})
}

// push 非阻塞写入，丢弃未读的旧快照。调用方持有 cache.mu
func (s *Subscription) push(snap Snapshot) {
	for {
		select {
		case s.updates <- snap:
			return
		default:
		}
		select {
		case <-s.updates:
		default:
		}
	}
}
