package client

import (
	"time"

	"github.com/kochabx/blogkit/cache"
	"github.com/kochabx/blogkit/config"
	"github.com/kochabx/blogkit/core/tag"
	"github.com/kochabx/blogkit/log"
	"github.com/kochabx/blogkit/session"
	"github.com/kochabx/blogkit/store/db"
	"github.com/kochabx/blogkit/store/etcd"
	"github.com/kochabx/blogkit/store/mongo"
	"github.com/kochabx/blogkit/store/redis"
)

// 会话持久化后端
const (
	DriverMemory = "memory"
	DriverDB     = "db"
	DriverRedis  = "redis"
	DriverEtcd   = "etcd"
	DriverMongo  = "mongo"
)

// Settings 客户端配置，对应 blogkit.yaml
type Settings struct {
	API     APIConfig     `mapstructure:"api"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Session SessionConfig `mapstructure:"session"`
	Cache   cache.Config  `mapstructure:"cache"`
	Storage StorageConfig `mapstructure:"storage"`
	Log     log.Config    `mapstructure:"log"`
}

type APIConfig struct {
	BaseURL string `mapstructure:"base_url" default:"http://localhost:8080" validate:"required,url"`
	// AuthFailureCodes 携带 token 的请求收到这些错误码时清除会话
	AuthFailureCodes []int `mapstructure:"auth_failure_codes" default:"401"`
}

type HTTPConfig struct {
	Timeout     time.Duration `mapstructure:"timeout" default:"10s" validate:"gt=0"`
	MaxBodySize int64         `mapstructure:"max_body_size" default:"8388608"`
}

type SessionConfig struct {
	Key        string        `mapstructure:"key" default:"session"`
	DefaultTTL time.Duration `mapstructure:"default_ttl" default:"24h"`
	// RefreshBefore 过期前多久主动刷新，0 表示不启用定时刷新
	RefreshBefore time.Duration     `mapstructure:"refresh_before" default:"5m"`
	RefreshSpec   string            `mapstructure:"refresh_spec" default:"@every 1m"`
	Endpoints     session.Endpoints `mapstructure:"endpoints"`
}

type StorageConfig struct {
	Driver string        `mapstructure:"driver" default:"memory" validate:"oneof=memory db redis etcd mongo"`
	DB     db.Config     `mapstructure:"db"`
	Redis  *redis.Config `mapstructure:"redis"`
	Etcd   *etcd.Config  `mapstructure:"etcd"`
	Mongo  *mongo.Config `mapstructure:"mongo"`
}

// DefaultSettings 只应用 default 标签的配置
func DefaultSettings() *Settings {
	s := &Settings{}
	// 标签都是静态的，只有写错时才会失败
	if err := tag.ApplyDefaults(s); err != nil {
		panic(err)
	}
	return s
}

// LoadSettings 读取配置文件、.env 和 BLOGKIT_ 前缀的环境变量
func LoadSettings(opts ...config.Option) (*Settings, *config.Config, error) {
	s := &Settings{}
	opts = append([]config.Option{
		config.WithFile("blogkit.yaml", ".", "$HOME/.blogkit"),
		config.WithEnvPrefix("BLOGKIT"),
		config.WithDotenv(),
	}, opts...)

	c := config.New(s, opts...)
	if err := c.Load(); err != nil {
		return nil, nil, err
	}
	return s, c, nil
}
