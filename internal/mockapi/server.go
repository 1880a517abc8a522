// Package mockapi 是博客后端的内存实现，供本地开发和客户端端到端测试使用。
package mockapi

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"

	"github.com/kochabx/blogkit/api"
	"github.com/kochabx/blogkit/core/auth/jwt"
	"github.com/kochabx/blogkit/log"
	middleware "github.com/kochabx/blogkit/middleware/http"
)

var errRevoked = errors.New("token revoked")

// Backend mock 后端
type Backend struct {
	cfg    *Config
	jwt    *jwt.JWT
	clock  clockwork.Clock
	logger *log.Logger
	data   *data

	requests *prometheus.CounterVec
	hitsMu   sync.Mutex
	hits     map[string]int

	engine *gin.Engine
}

type Option func(*Backend)

func WithClock(c clockwork.Clock) Option {
	return func(b *Backend) {
		if c != nil {
			b.clock = c
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithRegisterer 注册请求计数器
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(b *Backend) {
		if reg == nil {
			return
		}
		if err := reg.Register(b.requests); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				b.requests = are.ExistingCollector.(*prometheus.CounterVec)
				return
			}
			b.logger.Warn().Err(err).Msg("register mockapi metrics")
		}
	}
}

func New(cfg *Config, opts ...Option) (*Backend, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.init(); err != nil {
		return nil, err
	}

	b := &Backend{
		cfg:    cfg,
		clock:  clockwork.NewRealClock(),
		logger: log.G,
		data:   newData(cfg.Categories),
		hits:   make(map[string]int),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blogkit",
			Subsystem: "mockapi",
			Name:      "requests_total",
			Help:      "Requests handled by the mock backend.",
		}, []string{"method", "route", "status"}),
	}
	for _, opt := range opts {
		opt(b)
	}

	j, err := jwt.New(&cfg.JWT, jwt.WithNow(b.clock.Now))
	if err != nil {
		return nil, err
	}
	b.jwt = j
	b.engine = b.routes()
	return b, nil
}

// Handler 返回 gin 引擎，可以交给 transport/http.Server 或 httptest
func (b *Backend) Handler() *gin.Engine {
	return b.engine
}

func (b *Backend) routes() *gin.Engine {
	r := gin.New()
	r.ContextWithFallback = true
	r.Use(
		middleware.Recovery(middleware.RecoveryConfig{StackTrace: true, Logger: b.logger}),
		middleware.Logger(middleware.LoggerConfig{Logger: b.logger, RequestBody: true}),
		b.count,
	)

	authed := middleware.Auth(middleware.AuthConfig[*jwt.Claims]{
		Authenticator: middleware.AuthenticatorFunc[*jwt.Claims](b.authenticate),
	})

	auth := r.Group("/auth")
	auth.POST("/register", b.register)
	auth.POST("/login", b.login)
	auth.POST("/logout", b.logout)
	auth.POST("/forgot-password", b.forgotPassword)
	auth.POST("/reset-password", b.resetPassword)
	auth.POST("/verify-otp", b.verifyOTP)
	auth.POST("/resend-otp", b.resendOTP)
	auth.GET("/search", b.search)
	auth.GET("/refresh-token", authed, b.refreshToken)

	users := r.Group("/users")
	users.GET("/me", authed, b.me)
	users.GET("/:id", b.user)
	users.PATCH("/email", authed, b.changeEmail)
	users.PATCH("/avatar", authed, b.changeAvatar)
	users.DELETE("", authed, b.deleteAccount)

	blogs := r.Group("/blogs")
	blogs.GET("", b.listBlogs)
	blogs.GET("/:id", b.blog)
	blogs.GET("/user/:id", b.blogsByUser)
	blogs.POST("", authed, b.createBlog)
	blogs.DELETE("/:id", authed, b.deleteBlog)
	blogs.POST("/:id/reaction", authed, b.react)

	r.GET("/categories", b.listCategories)
	return r
}

func (b *Backend) count(c *gin.Context) {
	c.Next()

	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	b.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()

	b.hitsMu.Lock()
	b.hits[c.Request.Method+" "+route]++
	b.hitsMu.Unlock()
}

// Hits 路由被请求的次数，route 是注册时的模式，如 "/blogs/:id"
func (b *Backend) Hits(method, route string) int {
	b.hitsMu.Lock()
	defer b.hitsMu.Unlock()
	return b.hits[method+" "+route]
}

func (b *Backend) authenticate(_ context.Context, token string) (*jwt.Claims, error) {
	claims, err := b.jwt.Parse(token)
	if err != nil {
		return nil, err
	}

	b.data.mu.RLock()
	defer b.data.mu.RUnlock()
	if _, ok := b.data.revoked[claims.ID]; ok {
		return nil, errRevoked
	}
	if _, ok := b.data.users[claims.Subject]; !ok {
		return nil, errors.New("user no longer exists")
	}
	return claims, nil
}

// Revoke 让 token 在服务端失效，模拟会话被踢下线
func (b *Backend) Revoke(token string) error {
	claims, err := b.jwt.Parse(token)
	if err != nil {
		return err
	}
	b.data.mu.Lock()
	b.data.revoked[claims.ID] = b.clock.Now()
	b.data.mu.Unlock()
	return nil
}

// OTP 最近一次发给该邮箱的验证码。测试里代替邮件
func (b *Backend) OTP(email string) string {
	b.data.mu.RLock()
	defer b.data.mu.RUnlock()
	if u, ok := b.data.userByEmail(email); ok {
		return u.OTP
	}
	for _, u := range b.data.users {
		if normalizeEmail(u.PendingEmail) == normalizeEmail(email) {
			return u.OTP
		}
	}
	return ""
}

// SeedUser 直接创建一个已验证的用户
func (b *Backend) SeedUser(name, email, password string) (api.User, error) {
	u, err := b.newAccount(name, email, password)
	if err != nil {
		return api.User{}, err
	}
	u.Verified = true

	b.data.mu.Lock()
	defer b.data.mu.Unlock()
	if _, ok := b.data.userByEmail(email); ok {
		return api.User{}, errors.New("email already registered")
	}
	b.data.addUser(u)
	return u.User, nil
}

func (b *Backend) hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), b.cfg.PasswordCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func checkPassword(hashed, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}

func (b *Backend) claims(c *gin.Context) *jwt.Claims {
	claims, _ := middleware.GetClaims[*jwt.Claims](c.Request.Context())
	return claims
}
