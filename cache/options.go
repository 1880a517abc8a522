package cache

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kochabx/blogkit/log"
)

const (
	// DefaultGCGrace 无订阅者的条目保留时间
	DefaultGCGrace = 60 * time.Second
	// DefaultWorkers 后台获取的并发上限
	DefaultWorkers = 16
)

// Config 缓存配置
type Config struct {
	// GCGrace 为负数时不回收
	GCGrace time.Duration `json:"gcGrace" mapstructure:"gc_grace" default:"60s"`
	// RefetchAfter 订阅时 fulfilled 条目超过这个年龄就后台刷新，0 表示不刷新
	RefetchAfter time.Duration `json:"refetchAfter" mapstructure:"refetch_after" default:"0s"`
	Workers      int           `json:"workers" mapstructure:"workers" default:"16" validate:"gte=1"`
	Retry        RetryPolicy   `json:"retry" mapstructure:"retry"`
}

type options struct {
	gcGrace      time.Duration
	refetchAfter time.Duration
	workers      int
	retry        RetryPolicy
	strategy     RetryStrategy
	clock        clockwork.Clock
	logger       *log.Logger
	registerer   prometheus.Registerer
	namespace    string
}

type Option func(*options)

func defaultOptions() *options {
	return &options{
		gcGrace:   DefaultGCGrace,
		workers:   DefaultWorkers,
		retry:     DefaultRetryPolicy(),
		clock:     clockwork.NewRealClock(),
		logger:    log.G,
		namespace: "blogkit",
	}
}

// WithConfig 一次性应用配置
func WithConfig(c Config) Option {
	return func(o *options) {
		o.gcGrace = c.GCGrace
		o.refetchAfter = c.RefetchAfter
		if c.Workers > 0 {
			o.workers = c.Workers
		}
		o.retry = c.Retry
	}
}

func WithGCGrace(d time.Duration) Option {
	return func(o *options) {
		o.gcGrace = d
	}
}

func WithRefetchAfter(d time.Duration) Option {
	return func(o *options) {
		o.refetchAfter = d
	}
}

func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithRetry 设置重试次数和退避，strategy 为 nil 时由 policy 生成
func WithRetry(policy RetryPolicy, strategy RetryStrategy) Option {
	return func(o *options) {
		o.retry = policy
		o.strategy = strategy
	}
}

func WithClock(c clockwork.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics 注册 prometheus 指标
func WithMetrics(namespace string, reg prometheus.Registerer) Option {
	return func(o *options) {
		if namespace != "" {
			o.namespace = namespace
		}
		o.registerer = reg
	}
}
