package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kochabx/blogkit/log"
	"github.com/kochabx/blogkit/transport"
	"github.com/kochabx/blogkit/transport/http/metrics"
)

var _ transport.Server = (*Server)(nil)

const (
	defaultName = "http"
	defaultAddr = ":8080"
)

// Meta is the metadata of the server.
type Meta struct {
	Name string
}

type Server struct {
	meta    Meta
	options Options
	reg     *prometheus.Registry
	logger  *log.Logger
	server  *http.Server

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

type Option func(*Server)

func WithMeta(meta Meta) Option {
	return func(s *Server) {
		s.meta = meta
	}
}

// WithMetricsOptions 暴露 reg，业务指标注册在同一个 reg 上。reg 为 nil 时新建
func WithMetricsOptions(opt MetricsOption, reg *prometheus.Registry) Option {
	return func(s *Server) {
		if _, err := applyDefaults(&opt); err != nil {
			s.logger.Error().Err(err).Msg("invalid metrics options")
			return
		}
		s.options.Metrics = opt
		s.reg = reg
	}
}

func WithHealthOptions(health HealthOption) Option {
	return func(s *Server) {
		if _, err := applyDefaults(&health); err != nil {
			s.logger.Error().Err(err).Msg("invalid health options")
			return
		}
		s.options.Health = health
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewServer(addr string, handler http.Handler, opts ...Option) *Server {
	s := &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: handler,
		},
		logger: log.G,
		ready:  make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	additionalHandlers(s)

	return s
}

func (s *Server) Run() error {
	if s.meta.Name == "" {
		s.meta.Name = defaultName
	}

	if ok := transport.ValidAddr(s.server.Addr); !ok {
		s.logger.Warn().Msgf("invalid address %s, using default address: %s", s.server.Addr, defaultAddr)
		s.server.Addr = defaultAddr
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	close(s.ready)

	s.logger.Info().Msgf("%s server listening on %s", s.meta.Name, ln.Addr())

	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr 监听成功后的实际地址，端口为 0 时用于取得随机端口
func (s *Server) Addr(ctx context.Context) (string, error) {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener.Addr().String(), nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func additionalHandlers(s *Server) {
	if r, ok := s.server.Handler.(*gin.Engine); ok {
		handleMetrics(s, r)
		handleHealth(s, r)
	}
}

func handleMetrics(s *Server, r *gin.Engine) {
	opt := s.options.Metrics
	if !opt.Enabled {
		return
	}
	if s.reg == nil {
		s.reg = prometheus.NewRegistry()
	}
	if err := metrics.Register(s.reg, metrics.Collectors{
		GoRuntime: opt.GoRuntime,
		BuildInfo: opt.BuildInfo,
		Process:   opt.Process,
	}); err != nil {
		s.logger.Error().Err(err).Msg("register collectors")
	}
	r.GET(opt.Path, gin.WrapH(metrics.Handler(s.reg)))
}

func handleHealth(s *Server, r *gin.Engine) {
	if s.options.Health.Enabled {
		r.GET(s.options.Health.Path, func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
	}
}
