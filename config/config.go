package config

import (
	"sync"

	"github.com/spf13/viper"

	"github.com/kochabx/blogkit/core/validator"
	"github.com/kochabx/blogkit/log"
)

// Config 配置管理器，负责加载、校验和热更新 target
type Config struct {
	mu        sync.RWMutex
	viper     *viper.Viper
	validate  validator.Validator
	target    any
	loader    Loader
	logger    *log.Logger
	name      string
	paths     []string
	envPrefix string
	dotenv    []string
	onChange  []func()
}

// New 创建配置管理器，默认从当前目录读取 config.yaml
func New(target any, opts ...Option) *Config {
	c := &Config{
		viper:    viper.New(),
		validate: validator.Validate,
		target:   target,
		logger:   log.G,
		name:     "config.yaml",
		paths:    []string{"."},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.loader == nil {
		c.loader = &FileLoader{
			viper:     c.viper,
			validate:  c.validate,
			name:      c.name,
			paths:     c.paths,
			envPrefix: c.envPrefix,
			dotenv:    c.dotenv,
		}
	}

	return c
}

// Load 首次加载配置
func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loader.Load(c.target)
}

// Reload 重新加载配置，成功后依次回调 OnChange
func (c *Config) Reload() error {
	c.mu.Lock()
	err := c.loader.Load(c.target)
	callbacks := append([]func(){}, c.onChange...)
	c.mu.Unlock()

	if err != nil {
		return err
	}
	for _, fn := range callbacks {
		fn()
	}
	return nil
}

// OnChange 注册配置重载后的回调
func (c *Config) OnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = append(c.onChange, fn)
}

// Read 在读锁内访问 target，热更新期间读到的总是完整配置
func (c *Config) Read(fn func(target any)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn(c.target)
}

// Watch 监听配置文件变化并自动重载
func (c *Config) Watch() error {
	return c.loader.Watch(func() {
		c.logger.Info().Msg("config change detected")

		if err := c.Reload(); err != nil {
			c.logger.Error().Err(err).Msg("failed to reload config after change")
			return
		}

		c.logger.Info().Msg("config reloaded successfully")
	})
}

// GetViper 返回底层 viper 实例
func (c *Config) GetViper() *viper.Viper {
	return c.viper
}
