package mongo

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kochabx/blogkit/core/tag"
)

// Config MongoDB 配置
type Config struct {
	Host        string        `mapstructure:"host" default:"localhost"`
	Port        int           `mapstructure:"port" default:"27017"`
	User        string        `mapstructure:"user"`
	Password    string        `mapstructure:"password"`
	Database    string        `mapstructure:"database" default:"blogkit"`
	Collection  string        `mapstructure:"collection" default:"kv"`
	MaxPoolSize int           `mapstructure:"max_pool_size" default:"10"`
	Timeout     time.Duration `mapstructure:"timeout" default:"3s"`
}

// Init 应用默认值
func (c *Config) Init() error {
	return tag.ApplyDefaults(c)
}

func (c *Config) uri() string {
	u := url.URL{
		Scheme: "mongodb",
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/",
	}
	if c.User != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}
	return u.String()
}
