package session

import (
	"context"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/kochabx/blogkit/core/auth/jwt"
	corehttp "github.com/kochabx/blogkit/core/net/http"
	"github.com/kochabx/blogkit/core/validator"
	"github.com/kochabx/blogkit/errors"
	"github.com/kochabx/blogkit/gateway"
	"github.com/kochabx/blogkit/log"
)

// DefaultTTL 后端和 token 都没给出过期时间时使用
const DefaultTTL = 24 * time.Hour

// loginFailed 后端没有给出错误消息时的兜底
const loginFailed = "Login failed!"

// refreshTimeout 共享刷新请求的上限
const refreshTimeout = 30 * time.Second

// Endpoints 会话相关接口路径
type Endpoints struct {
	Login   string `json:"login" mapstructure:"login" default:"/auth/login"`
	Logout  string `json:"logout" mapstructure:"logout" default:"/auth/logout"`
	Refresh string `json:"refresh" mapstructure:"refresh" default:"/auth/refresh-token"`
}

// DefaultEndpoints 后端默认路径
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Login:   "/auth/login",
		Logout:  "/auth/logout",
		Refresh: "/auth/refresh-token",
	}
}

// Controller 会话的唯一写入方
type Controller struct {
	store      *TokenStore
	sender     gateway.Sender
	clock      clockwork.Clock
	endpoints  Endpoints
	defaultTTL time.Duration
	validate   validator.Validator
	logger     *log.Logger
	group      singleflight.Group
}

type Option func(*Controller)

func WithClock(c clockwork.Clock) Option {
	return func(ctrl *Controller) {
		if c != nil {
			ctrl.clock = c
		}
	}
}

func WithEndpoints(e Endpoints) Option {
	return func(ctrl *Controller) {
		if e.Login != "" {
			ctrl.endpoints.Login = e.Login
		}
		if e.Logout != "" {
			ctrl.endpoints.Logout = e.Logout
		}
		if e.Refresh != "" {
			ctrl.endpoints.Refresh = e.Refresh
		}
	}
}

func WithDefaultTTL(d time.Duration) Option {
	return func(ctrl *Controller) {
		if d > 0 {
			ctrl.defaultTTL = d
		}
	}
}

func WithValidator(v validator.Validator) Option {
	return func(ctrl *Controller) {
		if v != nil {
			ctrl.validate = v
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(ctrl *Controller) {
		if l != nil {
			ctrl.logger = l
		}
	}
}

// NewController sender 通常是 *gateway.Gateway，创建后需要 gateway.Attach(ctrl)
func NewController(store *TokenStore, sender gateway.Sender, opts ...Option) *Controller {
	c := &Controller{
		store:      store,
		sender:     sender,
		clock:      clockwork.NewRealClock(),
		endpoints:  DefaultEndpoints(),
		defaultTTL: DefaultTTL,
		validate:   validator.Validate,
		logger:     log.G,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store 底层 TokenStore，只用于订阅变更
func (c *Controller) Store() *TokenStore {
	return c.store
}

// CurrentState 每次调用都重新判定，不缓存
func (c *Controller) CurrentState() Status {
	sess := c.store.Get()
	switch {
	case sess.IsZero():
		return Status{State: StateAnonymous}
	case !c.clock.Now().Before(sess.ExpiresAt):
		return Status{State: StateExpired, Token: sess.Token, ExpiresAt: sess.ExpiresAt}
	default:
		return Status{State: StateAuthenticated, Token: sess.Token, ExpiresAt: sess.ExpiresAt}
	}
}

// AuthToken 实现 gateway.Session。过期的会话在这里被清除
func (c *Controller) AuthToken() (string, bool) {
	st := c.CurrentState()
	switch st.State {
	case StateAuthenticated:
		return st.Token, true
	case StateExpired:
		c.logger.Info().Time("expires_at", st.ExpiresAt).Msg("session expired locally")
		c.clearIfCurrent(st.Token)
	}
	return "", false
}

// OnUnauthorized 实现 gateway.Session。只有失败请求用的是当前 token 才清除，
// 迟到的旧 token 401 不会清掉新登录的会话
func (c *Controller) OnUnauthorized(token string) {
	if c.clearIfCurrent(token) {
		c.logger.Info().Msg("session cleared after auth failure")
	}
}

func (c *Controller) clearIfCurrent(token string) bool {
	if token == "" {
		return false
	}
	ok, err := c.store.CompareAndSet(context.Background(), token, Session{})
	if err != nil {
		c.logger.Error().Err(err).Msg("clear session")
	}
	return ok
}

// hasServerMessage gateway 对没有错误体的 4xx 用状态文本填充消息
func hasServerMessage(err error) bool {
	msg := errors.Message(err)
	return msg != "" && msg != http.StatusText(errors.Code(err))
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiredAt Timestamp `json:"expiredAt"`
}

// Login 登录成功后替换当前会话。领域错误原样返回且不改动会话
func (c *Controller) Login(ctx context.Context, cred Credentials) (Session, error) {
	if err := c.validate.Struct(cred); err != nil {
		return Session{}, errors.UnprocessableEntity("%s", err.Error()).WithCause(err)
	}

	resp, err := c.sender.Send(ctx, &gateway.Request{
		Method: http.MethodPost,
		Path:   c.endpoints.Login,
		Body:   cred,
		Auth:   gateway.AuthNone,
	})
	if err != nil {
		if errors.IsDomain(err) && !hasServerMessage(err) {
			return Session{}, errors.Domain(errors.Code(err), loginFailed).WithCause(err)
		}
		return Session{}, err
	}

	sess, err := c.sessionFrom(resp)
	if err != nil {
		return Session{}, err
	}

	if err := c.store.Set(ctx, sess); err != nil {
		// 内存里已经登录，持久化失败只影响重启后的恢复
		return sess, err
	}
	c.logger.Info().Time("expires_at", sess.ExpiresAt).Msg("logged in")
	return sess, nil
}

// Logout 尽力通知后端，然后无条件清除本地会话。通知失败只用于上报
func (c *Controller) Logout(ctx context.Context) error {
	sess := c.store.Get()
	if sess.IsZero() {
		return nil
	}

	_, notifyErr := c.sender.Send(ctx, &gateway.Request{
		Method: http.MethodPost,
		Path:   c.endpoints.Logout,
		Body:   map[string]string{"token": sess.Token},
		Header: map[string]string{corehttp.HeaderAuthorization: "Bearer " + sess.Token},
		Auth:   gateway.AuthNone,
	})
	if notifyErr != nil {
		c.logger.Warn().Err(notifyErr).Msg("logout notification failed")
	}

	clearErr := c.store.Clear(ctx)
	c.logger.Info().Msg("logged out")
	return errors.Join(notifyErr, clearErr)
}

// Refresh 用当前 token 换新会话，并发调用共享同一个请求。
// 共享的请求不随任何一个调用方取消，每个调用方只按自己的 ctx 放弃等待
func (c *Controller) Refresh(ctx context.Context) (Session, error) {
	ch := c.group.DoChan("refresh", func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return c.refresh(ctx)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return Session{}, res.Err
		}
		return res.Val.(Session), nil
	case <-ctx.Done():
		return Session{}, ctx.Err()
	}
}

func (c *Controller) refresh(ctx context.Context) (Session, error) {
	st := c.CurrentState()
	if st.State != StateAuthenticated {
		return Session{}, errors.AuthExpired("no active session to refresh")
	}

	resp, err := c.sender.Send(ctx, &gateway.Request{
		Method: http.MethodGet,
		Path:   c.endpoints.Refresh,
		Auth:   gateway.AuthRequired,
	})
	if err != nil {
		return Session{}, err
	}

	sess, err := c.sessionFrom(resp)
	if err != nil {
		return Session{}, err
	}

	// 刷新期间用户可能已登出或重新登录
	ok, err := c.store.CompareAndSet(ctx, st.Token, sess)
	if !ok {
		return Session{}, errors.AuthExpired("session changed during refresh")
	}
	if err != nil {
		return sess, err
	}
	c.logger.Debug().Time("expires_at", sess.ExpiresAt).Msg("session refreshed")
	return sess, nil
}

// sessionFrom 过期时间依次取响应里的 expiredAt、JWT exp、now+defaultTTL
func (c *Controller) sessionFrom(resp *gateway.Response) (Session, error) {
	var tr tokenResponse
	if err := resp.Decode(&tr); err != nil {
		return Session{}, errors.Transport(errors.TransportMalformed, resp.Status, err)
	}
	if tr.Token == "" {
		return Session{}, errors.Transport(errors.TransportMalformed, resp.Status, errors.Std("response has no token"))
	}

	expiresAt := tr.ExpiredAt.Time
	if expiresAt.IsZero() {
		if exp, err := jwt.ExpiresAt(tr.Token); err == nil {
			expiresAt = exp
		} else {
			expiresAt = c.clock.Now().Add(c.defaultTTL)
		}
	}
	return Session{Token: tr.Token, ExpiresAt: expiresAt}, nil
}
