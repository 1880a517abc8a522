package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/blogkit/errors"
	"github.com/kochabx/blogkit/log"
)

const waitFor = 2 * time.Second

// counter 可控的 fetcher：记录调用次数，gate 不为 nil 时阻塞到放行
type counter struct {
	calls atomic.Int32
	gate  chan struct{}
	value func(n int32) (any, error)
}

func (c *counter) fetch(ctx context.Context) (any, error) {
	n := c.calls.Add(1)
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.value != nil {
		return c.value(n)
	}
	return n, nil
}

func newTestCache(t *testing.T, opts ...Option) *Cache {
	t.Helper()
	opts = append([]Option{WithLogger(log.Nop()), WithRetry(RetryPolicy{}, nil)}, opts...)
	c, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func wait(t *testing.T, sub *Subscription) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	snap, err := sub.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded)
	return snap
}

func TestSubscribeSingleInFlight(t *testing.T) {
	c := newTestCache(t)
	f := &counter{gate: make(chan struct{})}
	q := Query{Key: "blogs", Fetch: f.fetch, Tags: []Tag{T("blog")}}

	subs := make([]*Subscription, 10)
	var wg sync.WaitGroup
	for i := range subs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sub, err := c.Subscribe(q)
			assert.NoError(t, err)
			subs[i] = sub
		}(i)
	}
	wg.Wait()

	snap := subs[0].Current()
	assert.Equal(t, StatusPending, snap.Status)
	assert.True(t, snap.Fetching)
	assert.Equal(t, 10, snap.Subscribers)
	assert.Equal(t, 1, c.Stats().InFlight)

	close(f.gate)
	for _, sub := range subs {
		snap := wait(t, sub)
		assert.Equal(t, StatusFulfilled, snap.Status)
		assert.Equal(t, int32(1), snap.Data)
	}
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestSubscribeFulfilledIsImmediate(t *testing.T) {
	c := newTestCache(t)
	f := &counter{}
	q := Query{Key: "me", Fetch: f.fetch, Tags: []Tag{T("user")}}

	first, err := c.Subscribe(q)
	require.NoError(t, err)
	wait(t, first)

	second, err := c.Subscribe(q)
	require.NoError(t, err)
	snap := second.Current()
	assert.Equal(t, StatusFulfilled, snap.Status)
	assert.False(t, snap.Fetching)

	select {
	case got := <-second.Updates():
		assert.Equal(t, StatusFulfilled, got.Status)
	default:
		t.Fatal("initial snapshot not delivered")
	}
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestInvalidateRefetchesOnlySubscribed(t *testing.T) {
	c := newTestCache(t)
	list := &counter{}
	detail := &counter{}

	listSub, err := c.Subscribe(Query{Key: "blogs", Fetch: list.fetch, Tags: []Tag{T("blog")}})
	require.NoError(t, err)
	wait(t, listSub)

	detailSub, err := c.Subscribe(Query{Key: "blog/1", Fetch: detail.fetch, Tags: []Tag{TID("blog", "1")}})
	require.NoError(t, err)
	wait(t, detailSub)
	detailSub.Unsubscribe()

	keys := c.Invalidate(T("blog"))
	assert.Equal(t, []Key{"blog/1", "blogs"}, keys)

	// 无订阅者的条目同步变为 stale，不重新获取
	snap, ok := c.Snapshot("blog/1")
	require.True(t, ok)
	assert.Equal(t, StatusStale, snap.Status)
	assert.False(t, snap.Fetching)
	assert.Equal(t, int32(1), snap.Data, "stale data stays readable")

	got := wait(t, listSub)
	assert.Equal(t, StatusFulfilled, got.Status)
	assert.Equal(t, int32(2), got.Data)
	assert.Equal(t, int32(2), list.calls.Load())
	assert.Equal(t, int32(1), detail.calls.Load())

	// 再次订阅 stale 条目时重新获取
	again, err := c.Subscribe(Query{Key: "blog/1", Fetch: detail.fetch, Tags: []Tag{TID("blog", "1")}})
	require.NoError(t, err)
	assert.Equal(t, StatusStale, again.Current().Status)
	assert.Equal(t, int32(2), wait(t, again).Data)
}

func TestInvalidateDuringFetchStoresStale(t *testing.T) {
	c := newTestCache(t)
	f := &counter{gate: make(chan struct{}, 2)}

	sub, err := c.Subscribe(Query{Key: "me", Fetch: f.fetch, Tags: []Tag{T("user")}})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, waitFor, time.Millisecond)
	assert.Equal(t, []Key{"me"}, c.Invalidate(T("user")))

	// 第一次结果到达时已经过时，存为 stale 并再次获取
	f.gate <- struct{}{}
	require.Eventually(t, func() bool { return f.calls.Load() == 2 }, waitFor, time.Millisecond)
	snap := sub.Current()
	assert.Equal(t, StatusStale, snap.Status)
	assert.True(t, snap.Fetching)
	assert.Equal(t, int32(1), snap.Data)

	f.gate <- struct{}{}
	got := wait(t, sub)
	assert.Equal(t, StatusFulfilled, got.Status)
	assert.Equal(t, int32(2), got.Data)
}

func TestInvalidateDuringRefetchMarksStale(t *testing.T) {
	c := newTestCache(t)
	f := &counter{gate: make(chan struct{}, 3)}
	f.gate <- struct{}{}

	sub, err := c.Subscribe(Query{Key: "me", Fetch: f.fetch, Tags: []Tag{T("user")}})
	require.NoError(t, err)
	assert.Equal(t, StatusFulfilled, wait(t, sub).Status)

	require.NoError(t, c.Refetch("me"))
	require.Eventually(t, func() bool { return f.calls.Load() == 2 }, waitFor, time.Millisecond)
	assert.Equal(t, []Key{"me"}, c.Invalidate(T("user")))

	// 返回前就已经是 stale，不必等进行中的获取完成
	snap, ok := c.Snapshot("me")
	require.True(t, ok)
	assert.Equal(t, StatusStale, snap.Status)
	assert.True(t, snap.Fetching)
	assert.Equal(t, int32(1), snap.Data)
	assert.Equal(t, StatusStale, sub.Current().Status)

	f.gate <- struct{}{}
	require.Eventually(t, func() bool { return f.calls.Load() == 3 }, waitFor, time.Millisecond)
	assert.Equal(t, StatusStale, sub.Current().Status)

	f.gate <- struct{}{}
	got := wait(t, sub)
	assert.Equal(t, StatusFulfilled, got.Status)
	assert.Equal(t, int32(3), got.Data)
}

func TestFetchWithoutSubscribersStillPopulates(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newTestCache(t, WithClock(clock), WithGCGrace(time.Minute))
	f := &counter{gate: make(chan struct{})}

	sub, err := c.Subscribe(Query{Key: "categories", Fetch: f.fetch, Tags: []Tag{T("category")}})
	require.NoError(t, err)
	sub.Unsubscribe()
	sub.Unsubscribe()

	_, open := <-sub.Updates()
	for open {
		_, open = <-sub.Updates()
	}

	close(f.gate)
	require.Eventually(t, func() bool {
		snap, ok := c.Snapshot("categories")
		return ok && snap.Status == StatusFulfilled
	}, waitFor, time.Millisecond)
	assert.Equal(t, 0, c.Stats().Subscribers)
}

func TestGarbageCollection(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newTestCache(t, WithClock(clock), WithGCGrace(time.Minute))
	f := &counter{}
	q := Query{Key: "blog/7", Fetch: f.fetch, Tags: []Tag{TID("blog", "7")}}

	sub, err := c.Subscribe(q)
	require.NoError(t, err)
	wait(t, sub)
	sub.Unsubscribe()

	// 宽限期内重新订阅取消回收
	clock.Advance(30 * time.Second)
	sub, err = c.Subscribe(q)
	require.NoError(t, err)
	clock.Advance(time.Minute)
	time.Sleep(10 * time.Millisecond)
	_, ok := c.Snapshot("blog/7")
	assert.True(t, ok)
	assert.Equal(t, int32(1), f.calls.Load())

	sub.Unsubscribe()
	clock.Advance(time.Minute)
	require.Eventually(t, func() bool {
		_, ok := c.Snapshot("blog/7")
		return !ok
	}, waitFor, time.Millisecond)
	assert.Empty(t, c.Index().Tags("blog/7"))
	assert.Empty(t, c.Invalidate(TID("blog", "7")))
}

func TestRetryTransportErrorsOnly(t *testing.T) {
	c := newTestCache(t, WithRetry(RetryPolicy{MaxRetries: 3}, FixedDelay{Delay: time.Millisecond}))

	flaky := &counter{value: func(n int32) (any, error) {
		if n < 3 {
			return nil, errors.Transport(errors.TransportNetwork, 0, context.DeadlineExceeded)
		}
		return "ok", nil
	}}
	sub, err := c.Subscribe(Query{Key: "flaky", Fetch: flaky.fetch})
	require.NoError(t, err)
	snap := wait(t, sub)
	assert.Equal(t, StatusFulfilled, snap.Status)
	assert.Equal(t, "ok", snap.Data)
	assert.Equal(t, int32(3), flaky.calls.Load())

	missing := &counter{value: func(int32) (any, error) {
		return nil, errors.NotFound("blog not found")
	}}
	sub, err = c.Subscribe(Query{Key: "missing", Fetch: missing.fetch})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	snap, err = sub.Wait(ctx)
	assert.True(t, errors.IsDomain(err))
	assert.Equal(t, StatusError, snap.Status)
	assert.Equal(t, int32(1), missing.calls.Load())
}

func TestErrorEntryRefetchedOnSubscribe(t *testing.T) {
	c := newTestCache(t)
	f := &counter{value: func(n int32) (any, error) {
		if n == 1 {
			return nil, errors.Internal("boom")
		}
		return "recovered", nil
	}}
	q := Query{Key: "k", Fetch: f.fetch}

	sub, err := c.Subscribe(q)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	_, err = sub.Wait(ctx)
	require.Error(t, err)

	again, err := c.Subscribe(q)
	require.NoError(t, err)
	snap := wait(t, again)
	assert.Equal(t, "recovered", snap.Data)
	assert.NoError(t, snap.Err)
}

func TestRefetchAfter(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newTestCache(t, WithClock(clock), WithRefetchAfter(time.Minute))
	f := &counter{}
	q := Query{Key: "blogs", Fetch: f.fetch}

	sub, err := c.Subscribe(q)
	require.NoError(t, err)
	wait(t, sub)

	_, err = c.Subscribe(q)
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.calls.Load())

	clock.Advance(2 * time.Minute)
	third, err := c.Subscribe(q)
	require.NoError(t, err)
	snap := third.Current()
	assert.Equal(t, StatusFulfilled, snap.Status, "old data is served while refetching")
	assert.Equal(t, int32(2), wait(t, third).Data)
}

func TestProvidesTags(t *testing.T) {
	c := newTestCache(t)
	f := &counter{value: func(int32) (any, error) {
		return []string{"1", "2"}, nil
	}}

	sub, err := c.Subscribe(Query{
		Key:   "blogs/user/9",
		Fetch: f.fetch,
		Provides: func(data any) []Tag {
			var tags []Tag
			for _, id := range data.([]string) {
				tags = append(tags, TID("blog", id))
			}
			return tags
		},
	})
	require.NoError(t, err)
	wait(t, sub)

	assert.ElementsMatch(t, []Tag{TID("blog", "1"), TID("blog", "2")}, c.Index().Tags("blogs/user/9"))
	assert.Equal(t, []Key{"blogs/user/9"}, c.Invalidate(TID("blog", "2")))
	assert.Empty(t, c.Invalidate(TID("blog", "3")))
}

func TestRefetchAndClose(t *testing.T) {
	c, err := New(WithLogger(log.Nop()))
	require.NoError(t, err)

	f := &counter{}
	sub, err := c.Subscribe(Query{Key: "k", Fetch: f.fetch})
	require.NoError(t, err)
	wait(t, sub)

	require.NoError(t, c.Refetch("k"))
	require.Eventually(t, func() bool { return f.calls.Load() == 2 }, waitFor, time.Millisecond)
	assert.ErrorIs(t, c.Refetch("nope"), ErrNotFound)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err = c.Subscribe(Query{Key: "k", Fetch: f.fetch})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = sub.Wait(context.Background())
	assert.ErrorIs(t, err, ErrUnsubscribed)

	_, err = c.Subscribe(Query{Key: "", Fetch: f.fetch})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := newTestCache(t, WithMetrics("test", reg))
	f := &counter{}

	sub, err := c.Subscribe(Query{Key: "k", Fetch: f.fetch, Tags: []Tag{T("blog")}})
	require.NoError(t, err)
	wait(t, sub)
	c.Invalidate(T("blog"))
	wait(t, sub)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.metrics.Invalidated))
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(c.metrics.Fetches.WithLabelValues("success")) == 2
	}, waitFor, time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(c.metrics.Subscribers))
}

func TestUpdatesKeepLatest(t *testing.T) {
	c := newTestCache(t)
	f := &counter{}
	sub, err := c.Subscribe(Query{Key: "k", Fetch: f.fetch, Tags: []Tag{T("x")}})
	require.NoError(t, err)
	wait(t, sub)

	for range 3 {
		c.Invalidate(T("x"))
		wait(t, sub)
	}

	// 未读的旧快照被覆盖，只剩最新的一个
	require.Eventually(t, func() bool {
		select {
		case snap := <-sub.Updates():
			return snap.Status == StatusFulfilled && snap.Data == int32(4) && len(sub.Updates()) == 0
		default:
			return false
		}
	}, waitFor, time.Millisecond)
}
