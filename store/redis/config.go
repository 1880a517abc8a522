package redis

import (
	"errors"
	"time"

	"github.com/kochabx/blogkit/core/tag"
)

var (
	ErrInvalidConfig  = errors.New("redis: invalid configuration")
	ErrEmptyAddrs     = errors.New("redis: addrs cannot be empty")
	ErrInvalidTimeout = errors.New("redis: negative timeout")
)

// Config Redis 配置，一个地址为单机，多个为集群，设置 MasterName 为哨兵
type Config struct {
	Addrs      []string `mapstructure:"addrs" default:"localhost:6379"`
	MasterName string   `mapstructure:"master_name"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	DB         int      `mapstructure:"db"`
	Protocol   int      `mapstructure:"protocol" default:"3"`

	DialTimeout  time.Duration `mapstructure:"dial_timeout" default:"5s"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" default:"3s"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" default:"3s"`

	// PoolSize 0 表示 10 * GOMAXPROCS
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxIdleTime  time.Duration `mapstructure:"max_idle_time" default:"5m"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout" default:"4s"`

	// MaxRetries -1 禁用重试
	MaxRetries      int           `mapstructure:"max_retries"`
	MinRetryBackoff time.Duration `mapstructure:"min_retry_backoff" default:"8ms"`
	MaxRetryBackoff time.Duration `mapstructure:"max_retry_backoff" default:"512ms"`

	// KeyPrefix 所有 key 的前缀，多个客户端共用一个库时隔离
	KeyPrefix string `mapstructure:"key_prefix" default:"blogkit:"`

	// Debug 逐条记录命令，SlowQuery 大于 0 时超时命令记 warn
	Debug     bool          `mapstructure:"debug"`
	SlowQuery time.Duration `mapstructure:"slow_query"`
	// Tracing/Metrics 通过 redisotel 接入全局 OpenTelemetry provider
	Tracing bool `mapstructure:"tracing"`
	Metrics bool `mapstructure:"metrics"`
}

func (c *Config) ApplyDefaults() error {
	return tag.ApplyDefaults(c)
}

func Single(addr string) *Config {
	return &Config{Addrs: []string{addr}}
}

func (c *Config) Validate() error {
	if len(c.Addrs) == 0 {
		return ErrEmptyAddrs
	}
	if c.DialTimeout < 0 || c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return ErrInvalidTimeout
	}
	return nil
}

func (c *Config) mode() string {
	switch {
	case c.MasterName != "":
		return "sentinel"
	case len(c.Addrs) > 1:
		return "cluster"
	default:
		return "single"
	}
}
