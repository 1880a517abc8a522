// Package cache 是带标签失效的查询缓存：同一个键同时只有一个获取在进行，
// 订阅者共享结果，变更通过标签把相关条目标记为 stale 并按需重新获取。
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/kochabx/blogkit/errors"
	"github.com/kochabx/blogkit/log"
)

var (
	ErrClosed       = errors.Std("cache: closed")
	ErrNotFound     = errors.Std("cache: entry not found")
	ErrUnsubscribed = errors.Std("cache: subscription closed")
	ErrInvalidQuery = errors.Std("cache: query needs a key and a fetcher")
)

// closeTimeout Close 等待正在执行的获取结束的上限
const closeTimeout = 10 * time.Second

// Status 条目状态
type Status uint8

const (
	StatusPending Status = iota
	StatusFulfilled
	StatusStale
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusFulfilled:
		return "fulfilled"
	case StatusStale:
		return "stale"
	case StatusError:
		return "error"
	default:
		return "pending"
	}
}

// Fetcher 获取数据，ctx 在缓存关闭时取消
type Fetcher func(ctx context.Context) (any, error)

// Query 一个可订阅的查询
type Query struct {
	Key   Key
	Fetch Fetcher
	// Tags 条目提供的固定标签
	Tags []Tag
	// Provides 根据结果追加标签，如列表里每个实体的 ID
	Provides func(data any) []Tag
}

// Snapshot 条目在某一时刻的只读视图
type Snapshot struct {
	Key         Key
	Status      Status
	Data        any
	Err         error
	UpdatedAt   time.Time
	Fetching    bool
	Subscribers int
}

// Settled 没有获取在进行且已经有结果
func (s Snapshot) Settled() bool {
	return !s.Fetching && s.Status != StatusPending
}

// Stats 缓存统计
type Stats struct {
	Entries     int
	Subscribers int
	InFlight    int
}

type entry struct {
	key       Key
	status    Status
	data      any
	err       error
	updatedAt time.Time

	fetch    Fetcher
	tags     []Tag
	provides func(any) []Tag

	subs     map[uint64]*Subscription
	inflight bool
	// gen 每次失效加一，获取完成时与发起时的值比较
	gen uint64

	gcTimer timer
	gcSeq   uint64

	changed chan struct{}
}

type timer interface {
	Stop() bool
}

func (e *entry) snapshot() Snapshot {
	return Snapshot{
		Key:         e.key,
		Status:      e.status,
		Data:        e.data,
		Err:         e.err,
		UpdatedAt:   e.updatedAt,
		Fetching:    e.inflight,
		Subscribers: len(e.subs),
	}
}

func (e *entry) providedTags(data any) []Tag {
	tags := append([]Tag(nil), e.tags...)
	if e.provides != nil && data != nil {
		tags = append(tags, e.provides(data)...)
	}
	return tags
}

// Cache 查询缓存
type Cache struct {
	mu       sync.Mutex
	entries  map[Key]*entry
	index    *TagIndex
	nextSub  uint64
	subCount int
	closed   bool

	pool     *ants.Pool
	opts     *options
	strategy RetryStrategy
	metrics  *Metrics
	logger   *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New 创建缓存和它的获取协程池
func New(opts ...Option) (*Cache, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	pool, err := ants.NewPool(o.workers)
	if err != nil {
		return nil, fmt.Errorf("create fetch pool: %w", err)
	}

	strategy := o.strategy
	if strategy == nil {
		strategy = o.retry.Strategy()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		entries:  make(map[Key]*entry),
		index:    NewTagIndex(),
		pool:     pool,
		opts:     o,
		strategy: strategy,
		metrics:  NewMetrics(o.namespace, o.registerer),
		logger:   o.logger,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Index 底层标签索引
func (c *Cache) Index() *TagIndex {
	return c.index
}

// Subscribe 订阅查询。不会阻塞在网络上：缺失时创建 pending 条目并发起唯一的获取，
// 已有数据立即可读，stale 或 error 时后台重新获取。初始快照会先推送到 Updates
func (c *Cache) Subscribe(q Query) (*Subscription, error) {
	if q.Key == "" || q.Fetch == nil {
		return nil, ErrInvalidQuery
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}

	e, ok := c.entries[q.Key]
	if !ok {
		e = &entry{
			key:     q.Key,
			status:  StatusPending,
			subs:    make(map[uint64]*Subscription),
			changed: make(chan struct{}),
		}
		c.entries[q.Key] = e
	}
	e.fetch = q.Fetch
	e.tags = q.Tags
	e.provides = q.Provides
	if !ok {
		// 首次获取期间的失效也要能命中
		c.index.Register(q.Key, e.providedTags(nil))
	}
	c.stopGC(e)

	c.nextSub++
	sub := newSubscription(c, q.Key, c.nextSub)
	e.subs[sub.id] = sub
	c.subCount++

	var jobs []func()
	if !e.inflight && c.needsFetch(e) {
		jobs = append(jobs, c.startFetch(e))
		c.publish(e)
	} else {
		sub.push(e.snapshot())
	}
	c.metrics.gauges(len(c.entries), c.subCount)
	c.mu.Unlock()

	c.dispatch(jobs)
	return sub, nil
}

func (c *Cache) needsFetch(e *entry) bool {
	switch e.status {
	case StatusPending, StatusStale, StatusError:
		return true
	default:
		return c.opts.refetchAfter > 0 && c.opts.clock.Since(e.updatedAt) >= c.opts.refetchAfter
	}
}

func (c *Cache) unsubscribe(sub *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[sub.key]
	if e == nil || e.subs[sub.id] != sub {
		return
	}
	delete(e.subs, sub.id)
	close(sub.updates)
	c.subCount--

	// 获取不会被取消，完成后照常写入条目
	if len(e.subs) == 0 {
		c.armGC(e)
	}
	c.metrics.gauges(len(c.entries), c.subCount)
}

// Invalidate 把提供了匹配标签的条目同步标记为 stale，有订阅者的立即重新获取。
// 返回受影响的键
func (c *Cache) Invalidate(tags ...Tag) []Key {
	if len(tags) == 0 {
		return nil
	}

	c.mu.Lock()
	keys := c.index.Invalidate(tags...)
	var jobs []func()
	for _, k := range keys {
		e := c.entries[k]
		if e == nil {
			continue
		}
		e.gen++
		if e.status == StatusFulfilled || e.status == StatusError {
			e.status = StatusStale
		}
		// in-flight 的获取完成时发现 gen 变了，会再次获取
		if len(e.subs) > 0 && !e.inflight {
			jobs = append(jobs, c.startFetch(e))
		}
		c.publish(e)
	}
	c.metrics.invalidated(len(keys))
	c.mu.Unlock()

	c.logger.Debug().
		Strs("tags", tagStrings(tags)).
		Int("keys", len(keys)).
		Int("refetch", len(jobs)).
		Msg("tags invalidated")

	c.dispatch(jobs)
	return keys
}

// Refetch 强制重新获取 key，已有获取在进行时复用它
func (c *Cache) Refetch(key Key) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	e := c.entries[key]
	if e == nil {
		c.mu.Unlock()
		return ErrNotFound
	}
	var jobs []func()
	if !e.inflight {
		jobs = append(jobs, c.startFetch(e))
		c.publish(e)
	}
	c.mu.Unlock()

	c.dispatch(jobs)
	return nil
}

// Snapshot 读取条目，不触发获取
func (c *Cache) Snapshot(key Key) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[key]
	if e == nil {
		return Snapshot{Key: key}, false
	}
	return e.snapshot(), true
}

// Keys 当前所有条目的键
func (c *Cache) Keys() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]Key, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{Entries: len(c.entries), Subscribers: c.subCount}
	for _, e := range c.entries {
		if e.inflight {
			s.InFlight++
		}
	}
	return s
}

// Close 取消正在进行的获取，关闭所有订阅
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.cancel()
	for k, e := range c.entries {
		c.stopGC(e)
		for _, sub := range e.subs {
			close(sub.updates)
		}
		close(e.changed)
		c.index.Unregister(k)
	}
	c.entries = make(map[Key]*entry)
	c.subCount = 0
	c.mu.Unlock()

	return c.pool.ReleaseTimeout(closeTimeout)
}

// watch 返回订阅者当前快照和下一次变化的信号
func (c *Cache) watch(sub *Subscription) (Snapshot, <-chan struct{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[sub.key]
	if e == nil || e.subs[sub.id] != sub {
		return Snapshot{Key: sub.key}, nil, false
	}
	return e.snapshot(), e.changed, true
}

// publish 推送快照并唤醒等待者，调用方持有 c.mu
func (c *Cache) publish(e *entry) {
	snap := e.snapshot()
	for _, sub := range e.subs {
		sub.push(snap)
	}
	close(e.changed)
	e.changed = make(chan struct{})
}

// startFetch 标记 in-flight 并返回获取任务，调用方持有 c.mu
func (c *Cache) startFetch(e *entry) func() {
	e.inflight = true
	gen := e.gen
	fetch := e.fetch
	return func() {
		data, err := c.fetchWithRetry(e.key, fetch)
		c.complete(e, gen, data, err)
	}
}

func (c *Cache) complete(e *entry, gen uint64, data any, err error) {
	c.mu.Lock()
	if c.entries[e.key] != e {
		c.mu.Unlock()
		return
	}
	e.inflight = false

	if err != nil {
		e.status = StatusError
		e.err = err
	} else {
		e.status = StatusFulfilled
		e.data = data
		e.err = nil
		e.updatedAt = c.opts.clock.Now()
		c.index.Register(e.key, e.providedTags(data))
	}

	var jobs []func()
	if e.gen != gen {
		// 获取期间发生了失效，结果可能已经过时
		if e.status == StatusFulfilled {
			e.status = StatusStale
		}
		if len(e.subs) > 0 {
			jobs = append(jobs, c.startFetch(e))
		}
	}
	c.publish(e)
	if len(e.subs) == 0 {
		c.armGC(e)
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Debug().Err(err).Str("key", e.key.String()).Msg("query fetch failed")
	}
	c.dispatch(jobs)
}

func (c *Cache) fetchWithRetry(key Key, fetch Fetcher) (data any, err error) {
	start := time.Now()
	maxRetries := c.opts.retry.MaxRetries

	for attempt := 0; ; attempt++ {
		data, err = c.safeFetch(fetch)
		if err == nil || !errors.IsRetryable(err) || attempt >= maxRetries || c.ctx.Err() != nil {
			break
		}

		delay := c.strategy.NextRetry(attempt)
		c.metrics.retried()
		c.logger.Debug().
			Err(err).
			Str("key", key.String()).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("retrying query fetch")

		select {
		case <-c.opts.clock.After(delay):
		case <-c.ctx.Done():
		}
	}

	outcome := "success"
	if err != nil {
		var ge *errors.Error
		if errors.As(err, &ge) {
			outcome = ge.Kind().String()
		} else {
			outcome = errors.KindUnknown.String()
		}
	}
	c.metrics.fetched(outcome, time.Since(start).Seconds())
	return data, err
}

func (c *Cache) safeFetch(fetch Fetcher) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.UnknownCode, "fetch panicked: %v", r)
		}
	}()
	return fetch(c.ctx)
}

// dispatch 在锁外把任务交给协程池。池满时阻塞的是这个协程而不是调用方
func (c *Cache) dispatch(jobs []func()) {
	if len(jobs) == 0 {
		return
	}
	go func() {
		for _, job := range jobs {
			if err := c.pool.Submit(job); err != nil {
				c.logger.Warn().Err(err).Msg("submit query fetch")
			}
		}
	}()
}

// armGC 调用方持有 c.mu
func (c *Cache) armGC(e *entry) {
	c.stopGC(e)
	if c.opts.gcGrace < 0 {
		return
	}
	seq := e.gcSeq
	e.gcTimer = c.opts.clock.AfterFunc(c.opts.gcGrace, func() {
		c.collect(e, seq)
	})
}

func (c *Cache) stopGC(e *entry) {
	if e.gcTimer != nil {
		e.gcTimer.Stop()
		e.gcTimer = nil
	}
	e.gcSeq++
}

func (c *Cache) collect(e *entry, seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entries[e.key] != e || e.gcSeq != seq || len(e.subs) > 0 {
		return
	}
	if e.inflight {
		// 完成时会重新计时
		e.gcTimer = nil
		return
	}

	delete(c.entries, e.key)
	c.index.Unregister(e.key)
	close(e.changed)
	c.metrics.collected()
	c.metrics.gauges(len(c.entries), c.subCount)
	c.logger.Debug().Str("key", e.key.String()).Msg("cache entry collected")
}
