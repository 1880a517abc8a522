package config

import (
	"github.com/spf13/viper"

	"github.com/kochabx/blogkit/core/validator"
	"github.com/kochabx/blogkit/log"
)

// Option 配置管理器选项
type Option func(*Config)

// WithViper 使用自定义 viper 实例
func WithViper(v *viper.Viper) Option {
	return func(c *Config) {
		c.viper = v
	}
}

// WithValidator 使用自定义校验器，传 nil 关闭校验
func WithValidator(v validator.Validator) Option {
	return func(c *Config) {
		c.validate = v
	}
}

// WithLoader 使用自定义加载器
func WithLoader(loader Loader) Option {
	return func(c *Config) {
		c.loader = loader
	}
}

// WithFile 指定配置文件名和搜索目录
func WithFile(name string, paths ...string) Option {
	return func(c *Config) {
		c.name = name
		if len(paths) > 0 {
			c.paths = paths
		}
	}
}

// WithEnvPrefix 环境变量前缀，如 BLOGKIT 对应 BLOGKIT_API_BASEURL
func WithEnvPrefix(prefix string) Option {
	return func(c *Config) {
		c.envPrefix = prefix
	}
}

// WithDotenv 加载前先读取 .env 文件，已存在的环境变量不会被覆盖
func WithDotenv(files ...string) Option {
	return func(c *Config) {
		if len(files) == 0 {
			files = []string{".env"}
		}
		c.dotenv = files
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *log.Logger) Option {
	return func(c *Config) {
		c.logger = logger
	}
}
