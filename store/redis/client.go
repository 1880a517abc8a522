package redis

import (
	"context"
	"runtime"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	"github.com/kochabx/blogkit/log"
)

// Client Redis 统一客户端（单机/集群/哨兵）
type Client struct {
	client redis.UniversalClient
	config *Config
	logger *log.Logger
}

type options struct {
	logger *log.Logger
	hooks  []redis.Hook
}

type Option func(*options)

func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithHooks 追加在内置 hook 之前
func WithHooks(hooks ...redis.Hook) Option {
	return func(o *options) { o.hooks = append(o.hooks, hooks...) }
}

// New 创建客户端并 Ping 一次，失败时释放连接
func New(ctx context.Context, cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{logger: log.G}
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger
	if logger == nil {
		logger = log.G
	}

	c := &Client{
		config: cfg,
		logger: logger,
		client: redis.NewUniversalClient(buildUniversalOptions(cfg)),
	}

	if err := c.instrument(o.hooks); err != nil {
		c.client.Close()
		return nil, err
	}
	if err := c.Ping(ctx); err != nil {
		c.client.Close()
		return nil, err
	}

	c.logger.Debug().Str("mode", cfg.mode()).Strs("addrs", cfg.Addrs).Msg("redis client created")
	return c, nil
}

func buildUniversalOptions(cfg *Config) *redis.UniversalOptions {
	poolSize := cfg.PoolSize
	if poolSize == 0 {
		poolSize = 10 * runtime.GOMAXPROCS(0)
	}

	return &redis.UniversalOptions{
		Addrs:      cfg.Addrs,
		MasterName: cfg.MasterName,
		Username:   cfg.Username,
		Password:   cfg.Password,
		DB:         cfg.DB,
		Protocol:   cfg.Protocol,

		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,

		PoolSize:        poolSize,
		MinIdleConns:    cfg.MinIdleConns,
		ConnMaxIdleTime: cfg.MaxIdleTime,
		PoolTimeout:     cfg.PoolTimeout,

		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: cfg.MinRetryBackoff,
		MaxRetryBackoff: cfg.MaxRetryBackoff,
	}
}

func (c *Client) instrument(hooks []redis.Hook) error {
	for _, h := range hooks {
		c.client.AddHook(h)
	}
	if c.config.Tracing {
		if err := redisotel.InstrumentTracing(c.client); err != nil {
			return err
		}
	}
	if c.config.Metrics {
		if err := redisotel.InstrumentMetrics(c.client); err != nil {
			return err
		}
	}
	if c.config.Debug || c.config.SlowQuery > 0 {
		c.client.AddHook(&commandLog{logger: c.logger, debug: c.config.Debug, slow: c.config.SlowQuery, now: time.Now})
	}
	return nil
}

// UniversalClient 底层客户端
func (c *Client) UniversalClient() redis.UniversalClient {
	return c.client
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Client) Close() error {
	err := c.client.Close()
	c.logger.Debug().Msg("redis client closed")
	return err
}

// Stats 连接池统计
func (c *Client) Stats() *redis.PoolStats {
	return c.client.PoolStats()
}
