// Package client 把会话、请求网关、查询缓存和写操作组装成一个博客 API 客户端。
package client

import (
	"context"
	"errors"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kochabx/blogkit/api"
	"github.com/kochabx/blogkit/cache"
	corehttp "github.com/kochabx/blogkit/core/net/http"
	"github.com/kochabx/blogkit/gateway"
	"github.com/kochabx/blogkit/log"
	"github.com/kochabx/blogkit/mutation"
	"github.com/kochabx/blogkit/session"
	"github.com/kochabx/blogkit/store/kv"
)

// sessionTags 会话变化时失效的标签
var sessionTags = []cache.Tag{cache.T(api.TagAuth), cache.T(api.TagUser)}

// Client 一个进程内共享的客户端，每个实例拥有独立的会话和缓存
type Client struct {
	settings *Settings
	logger   *log.Logger
	ownsLog  bool

	kv         kv.Store
	ownsKV     bool
	store      *session.TokenStore
	gateway    *gateway.Gateway
	session    *session.Controller
	cache      *cache.Cache
	dispatcher *mutation.Dispatcher
	api        *api.API
	refresher  *session.Refresher

	unsubscribe func()
	stopWatch   context.CancelFunc
	closeOnce   sync.Once
	closeErr    error
}

type Option func(*clientOptions)

type clientOptions struct {
	store      kv.Store
	logger     *log.Logger
	clock      clockwork.Clock
	registerer prometheus.Registerer
	doer       corehttp.Doer
}

// WithStore 使用已经打开的存储，忽略 storage 配置。Close 不会关闭它
func WithStore(s kv.Store) Option {
	return func(o *clientOptions) {
		o.store = s
	}
}

// WithLogger 使用调用方的日志，忽略 log 配置
func WithLogger(l *log.Logger) Option {
	return func(o *clientOptions) {
		o.logger = l
	}
}

func WithClock(c clockwork.Clock) Option {
	return func(o *clientOptions) {
		o.clock = c
	}
}

// WithRegisterer 注册缓存指标
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *clientOptions) {
		o.registerer = reg
	}
}

func WithDoer(d corehttp.Doer) Option {
	return func(o *clientOptions) {
		o.doer = d
	}
}

// New 组装客户端：存储 -> 会话 -> 网关 -> 缓存 -> 写操作。持久化的会话在返回前已经加载
func New(ctx context.Context, settings *Settings, opts ...Option) (*Client, error) {
	o := &clientOptions{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(o)
	}

	c := &Client{settings: settings, logger: o.logger}
	if c.logger == nil {
		l, err := log.FromConfig(settings.Log)
		if err != nil {
			return nil, err
		}
		c.logger, c.ownsLog = l, true
	}

	c.kv = o.store
	if c.kv == nil {
		s, err := OpenStore(ctx, settings.Storage, c.logger.Component("storage"))
		if err != nil {
			c.closeLogger()
			return nil, err
		}
		c.kv, c.ownsKV = s, true
	}

	c.store = session.NewTokenStore(c.kv,
		session.WithKey(settings.Session.Key),
		session.WithStoreLogger(c.logger.Component("session")),
	)
	if err := c.store.Load(ctx); err != nil {
		c.release()
		return nil, err
	}

	doer := o.doer
	if doer == nil {
		httpOpts := []corehttp.Option{corehttp.WithTimeout(settings.HTTP.Timeout)}
		if settings.HTTP.MaxBodySize > 0 {
			httpOpts = append(httpOpts, corehttp.WithMaxBodySize(settings.HTTP.MaxBodySize))
		}
		doer = corehttp.New(httpOpts...)
	}
	gw, err := gateway.New(settings.API.BaseURL,
		gateway.WithDoer(doer),
		gateway.WithAuthFailureCodes(settings.API.AuthFailureCodes...),
		gateway.WithLogger(c.logger.Component("gateway")),
	)
	if err != nil {
		c.release()
		return nil, err
	}
	c.gateway = gw

	endpoints := settings.Session.Endpoints
	if endpoints == (session.Endpoints{}) {
		endpoints = session.DefaultEndpoints()
	}
	c.session = session.NewController(c.store, gw,
		session.WithClock(o.clock),
		session.WithEndpoints(endpoints),
		session.WithDefaultTTL(settings.Session.DefaultTTL),
		session.WithLogger(c.logger.Component("session")),
	)
	gw.Attach(c.session)

	cacheOpts := []cache.Option{
		cache.WithConfig(settings.Cache),
		cache.WithClock(o.clock),
		cache.WithLogger(c.logger.Component("cache")),
	}
	if o.registerer != nil {
		cacheOpts = append(cacheOpts, cache.WithMetrics("blogkit", o.registerer))
	}
	c.cache, err = cache.New(cacheOpts...)
	if err != nil {
		c.release()
		return nil, err
	}

	c.dispatcher = mutation.New(gw, c.cache, mutation.WithLogger(c.logger.Component("mutation")))
	c.api = api.New(gw, c.dispatcher)

	// 登录、登出、刷新和服务端拒绝都经过 TokenStore，统一在这里失效会话相关的查询
	c.unsubscribe = c.store.Subscribe(func(prev, next session.Session) {
		c.cache.Invalidate(sessionTags...)
	})

	if settings.Session.RefreshBefore > 0 {
		c.refresher, err = session.NewRefresher(c.session, settings.Session.RefreshSpec,
			settings.Session.RefreshBefore, c.logger.Component("refresher"))
		if err != nil {
			c.release()
			return nil, err
		}
	}

	if w, ok := c.kv.(watcher); ok {
		wctx, cancel := context.WithCancel(context.Background())
		c.stopWatch = cancel
		go c.watch(wctx, w)
	}

	return c, nil
}

// watch 采纳其他进程对会话的修改，如另一个终端里登出
func (c *Client) watch(ctx context.Context, w watcher) {
	key := c.settings.Session.Key
	if key == "" {
		key = session.DefaultKey
	}
	for data := range w.Watch(ctx, key) {
		if err := c.store.Apply(data); err != nil {
			c.logger.Warn().Err(err).Msg("ignoring unreadable session update")
		}
	}
}

func (c *Client) Settings() *Settings { return c.settings }
func (c *Client) Logger() *log.Logger { return c.logger }
func (c *Client) Session() *session.Controller { return c.session }
func (c *Client) Gateway() *gateway.Gateway { return c.gateway }
func (c *Client) Cache() *cache.Cache { return c.cache }
func (c *Client) Dispatcher() *mutation.Dispatcher { return c.dispatcher }
func (c *Client) API() *api.API { return c.api }

// Refresher 定时刷新器，session.refresh_before 为 0 时返回 nil
func (c *Client) Refresher() *session.Refresher { return c.refresher }

func (c *Client) Status() session.Status {
	return c.session.CurrentState()
}

func (c *Client) Login(ctx context.Context, email, password string) (session.Session, error) {
	return c.session.Login(ctx, session.Credentials{Email: email, Password: password})
}

func (c *Client) Logout(ctx context.Context) error {
	return c.session.Logout(ctx)
}

// DeleteAccount 删除账号，成功后清除本地会话。账号已经不存在，不再通知服务端登出
func (c *Client) DeleteAccount(ctx context.Context, password string) (api.Message, error) {
	msg, err := c.api.DeleteAccount(ctx, password)
	if err != nil {
		return msg, err
	}
	if err := c.store.Clear(ctx); err != nil {
		return msg, err
	}
	return msg, nil
}

// Close 停止后台任务并释放缓存和存储，可重复调用
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if c.unsubscribe != nil {
			c.unsubscribe()
		}
		c.closeErr = c.release()
	})
	return c.closeErr
}

func (c *Client) release() error {
	var errs []error
	if c.stopWatch != nil {
		c.stopWatch()
	}
	if c.cache != nil {
		errs = append(errs, c.cache.Close())
	}
	if c.kv != nil && c.ownsKV {
		errs = append(errs, c.kv.Close())
	}
	c.closeLogger()
	return errors.Join(errs...)
}

func (c *Client) closeLogger() {
	if c.ownsLog {
		_ = c.logger.Close()
	}
}
