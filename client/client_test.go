package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/blogkit/api"
	"github.com/kochabx/blogkit/cache"
	"github.com/kochabx/blogkit/core/auth/jwt"
	"github.com/kochabx/blogkit/errors"
	"github.com/kochabx/blogkit/internal/mockapi"
	"github.com/kochabx/blogkit/log"
	"github.com/kochabx/blogkit/session"
	"github.com/kochabx/blogkit/store/kv"
)

func newBackend(t *testing.T) (*mockapi.Backend, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	b, err := mockapi.New(&mockapi.Config{
		JWT:          jwt.Config{Secret: "client-test", TTL: time.Hour},
		PasswordCost: 4,
	}, mockapi.WithLogger(log.Nop()))
	require.NoError(t, err)

	srv := httptest.NewServer(b.Handler())
	t.Cleanup(srv.Close)
	return b, srv.URL
}

func newClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	s := DefaultSettings()
	s.API.BaseURL = baseURL
	s.Cache.Retry = cache.RetryPolicy{}

	c, err := New(context.Background(), s, append([]Option{WithLogger(log.Nop())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// waitFor 读取订阅更新直到满足条件
func waitFor(t *testing.T, sub *cache.Subscription, cond func(cache.Snapshot) bool) cache.Snapshot {
	t.Helper()
	if snap := sub.Current(); cond(snap) {
		return snap
	}
	timeout := time.After(5 * time.Second)
	for {
		select {
		case snap := <-sub.Updates():
			if cond(snap) {
				return snap
			}
		case <-timeout:
			t.Fatalf("condition not met, last snapshot: %+v", sub.Current())
			return cache.Snapshot{}
		}
	}
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, "http://localhost:8080", s.API.BaseURL)
	assert.Equal(t, []int{http.StatusUnauthorized}, s.API.AuthFailureCodes)
	assert.Equal(t, 10*time.Second, s.HTTP.Timeout)
	assert.Equal(t, "session", s.Session.Key)
	assert.Equal(t, 5*time.Minute, s.Session.RefreshBefore)
	assert.Equal(t, DriverMemory, s.Storage.Driver)
	assert.Equal(t, 60*time.Second, s.Cache.GCGrace)
}

func TestOpenStore(t *testing.T) {
	s, err := OpenStore(context.Background(), StorageConfig{Driver: DriverMemory}, log.Nop())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = OpenStore(context.Background(), StorageConfig{Driver: "floppy"}, log.Nop())
	assert.Error(t, err)
}

func TestLoginStatusLogout(t *testing.T) {
	backend, url := newBackend(t)
	_, err := backend.SeedUser("Ada", "ada@example.com", "secret1")
	require.NoError(t, err)
	c := newClient(t, url)
	ctx := context.Background()

	assert.Equal(t, session.StateAnonymous, c.Status().State)

	_, err = c.Login(ctx, "ada@example.com", "wrong")
	require.Error(t, err)
	assert.True(t, errors.IsDomain(err))
	assert.Equal(t, "Invalid email or password", errors.Message(err))
	assert.Equal(t, session.StateAnonymous, c.Status().State)

	sess, err := c.Login(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	st := c.Status()
	assert.Equal(t, session.StateAuthenticated, st.State)
	assert.Equal(t, sess.Token, st.Token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), st.ExpiresAt, 5*time.Second)

	me, err := api.Get[api.User](ctx, c.Cache(), c.API().Me())
	require.NoError(t, err)
	assert.Equal(t, "Ada", me.Name)

	require.NoError(t, c.Logout(ctx))
	assert.Equal(t, session.StateAnonymous, c.Status().State)
	assert.Equal(t, 1, backend.Hits(http.MethodPost, "/auth/logout"))

	_, err = api.Get[api.User](ctx, c.Cache(), c.API().Me())
	assert.True(t, errors.IsAuthExpired(err))
}

func TestMeRefetchedOnSessionChange(t *testing.T) {
	backend, url := newBackend(t)
	for _, u := range []struct{ name, email string }{{"Ada", "ada@example.com"}, {"Bob", "bob@example.com"}} {
		_, err := backend.SeedUser(u.name, u.email, "secret1")
		require.NoError(t, err)
	}
	c := newClient(t, url)
	ctx := context.Background()

	_, err := c.Login(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	sub, err := c.Cache().Subscribe(c.API().Me())
	require.NoError(t, err)
	defer sub.Unsubscribe()

	snap, err := sub.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ada", snap.Data.(api.User).Name)

	_, err = c.Login(ctx, "bob@example.com", "secret1")
	require.NoError(t, err)

	waitFor(t, sub, func(s cache.Snapshot) bool {
		u, ok := s.Data.(api.User)
		return s.Settled() && ok && u.Name == "Bob"
	})
	assert.Equal(t, 2, backend.Hits(http.MethodGet, "/users/me"))
}

func TestRejectedTokenClearsSession(t *testing.T) {
	backend, url := newBackend(t)
	_, err := backend.SeedUser("Ada", "ada@example.com", "secret1")
	require.NoError(t, err)
	c := newClient(t, url)
	ctx := context.Background()

	sess, err := c.Login(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, backend.Revoke(sess.Token))

	_, err = api.Get[api.User](ctx, c.Cache(), c.API().Me())
	require.Error(t, err)
	assert.True(t, errors.IsAuthExpired(err))
	assert.Equal(t, http.StatusUnauthorized, errors.Code(err))
	assert.Equal(t, session.StateAnonymous, c.Status().State)
}

func TestAuthRequiredWithoutSession(t *testing.T) {
	_, url := newBackend(t)
	c := newClient(t, url)

	_, err := api.Get[api.User](context.Background(), c.Cache(), c.API().Me())
	require.Error(t, err)
	assert.True(t, errors.IsAuthExpired(err))
}

func TestCreateBlogRefreshesList(t *testing.T) {
	backend, url := newBackend(t)
	_, err := backend.SeedUser("Ada", "ada@example.com", "secret1")
	require.NoError(t, err)
	c := newClient(t, url)
	ctx := context.Background()

	_, err = c.Login(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	sub, err := c.Cache().Subscribe(c.API().Blogs(api.BlogListParams{Page: 1}))
	require.NoError(t, err)
	defer sub.Unsubscribe()
	snap, err := sub.Wait(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Data.(api.BlogPage).Blogs)

	blog, err := c.API().CreateBlog(ctx, api.CreateBlogRequest{Title: "Hello", Content: "World", Category: "Technology"})
	require.NoError(t, err)

	waitFor(t, sub, func(s cache.Snapshot) bool {
		p, ok := s.Data.(api.BlogPage)
		return s.Settled() && ok && len(p.Blogs) == 1
	})

	// 回应只失效这一篇，列表里也提供了 blog:{id}
	_, err = c.API().React(ctx, blog.ID, "like")
	require.NoError(t, err)
	snap = waitFor(t, sub, func(s cache.Snapshot) bool {
		p, ok := s.Data.(api.BlogPage)
		return s.Settled() && ok && len(p.Blogs) == 1 && p.Blogs[0].Reactions["like"] == 1
	})
	assert.Equal(t, blog.ID, snap.Data.(api.BlogPage).Blogs[0].ID)
}

func TestDeleteAccountClearsSession(t *testing.T) {
	backend, url := newBackend(t)
	_, err := backend.SeedUser("Ada", "ada@example.com", "secret1")
	require.NoError(t, err)
	c := newClient(t, url)
	ctx := context.Background()

	_, err = c.Login(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	_, err = c.DeleteAccount(ctx, "wrong")
	require.Error(t, err)
	assert.Equal(t, session.StateAuthenticated, c.Status().State)

	msg, err := c.DeleteAccount(ctx, "secret1")
	require.NoError(t, err)
	assert.True(t, msg.Success)
	assert.Equal(t, session.StateAnonymous, c.Status().State)
	assert.Zero(t, backend.Hits(http.MethodPost, "/auth/logout"))

	_, err = c.Login(ctx, "ada@example.com", "secret1")
	assert.Error(t, err)
}

func TestSessionRestoredFromStore(t *testing.T) {
	backend, url := newBackend(t)
	_, err := backend.SeedUser("Ada", "ada@example.com", "secret1")
	require.NoError(t, err)
	store := kv.NewMemory()
	ctx := context.Background()

	first := newClient(t, url, WithStore(store))
	sess, err := first.Login(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := newClient(t, url, WithStore(store))
	st := second.Status()
	assert.Equal(t, session.StateAuthenticated, st.State)
	assert.Equal(t, sess.Token, st.Token)

	me, err := api.Get[api.User](ctx, second.Cache(), second.API().Me())
	require.NoError(t, err)
	assert.Equal(t, "Ada", me.Name)
}

func TestRefresherTick(t *testing.T) {
	backend, url := newBackend(t)
	_, err := backend.SeedUser("Ada", "ada@example.com", "secret1")
	require.NoError(t, err)

	s := DefaultSettings()
	s.API.BaseURL = url
	s.Session.RefreshBefore = 2 * time.Hour
	c, err := New(context.Background(), s, WithLogger(log.Nop()), WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	defer c.Close()
	require.NotNil(t, c.Refresher())

	ctx := context.Background()
	ok, err := c.Refresher().Tick(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "anonymous sessions are not refreshed")

	sess, err := c.Login(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	ok, err = c.Refresher().Tick(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEqual(t, sess.Token, c.Status().Token)
	assert.Equal(t, 1, backend.Hits(http.MethodGet, "/auth/refresh-token"))
}
