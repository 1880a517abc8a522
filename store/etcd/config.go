package etcd

import (
	"time"

	"github.com/kochabx/blogkit/core/tag"
)

// Config ETCD 配置
type Config struct {
	Endpoints        []string      `mapstructure:"endpoints" default:"localhost:2379"`
	Username         string        `mapstructure:"username"`
	Password         string        `mapstructure:"password"`
	DialTimeout      time.Duration `mapstructure:"dial_timeout" default:"5s"`
	KeepAliveTime    time.Duration `mapstructure:"keep_alive_time" default:"30s"`
	KeepAliveTimeout time.Duration `mapstructure:"keep_alive_timeout" default:"5s"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout" default:"3s"`
	// Prefix key 前缀
	Prefix string `mapstructure:"prefix" default:"/blogkit/"`
}

func (c *Config) init() error {
	return tag.ApplyDefaults(c)
}
