package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Config 签发配置，仅 mock 后端使用
type Config struct {
	Secret        string        `mapstructure:"secret" validate:"required"`
	SigningMethod string        `mapstructure:"signing_method" default:"HS256" validate:"oneof=HS256 HS384 HS512"`
	TTL           time.Duration `mapstructure:"ttl" default:"1h" validate:"gt=0"`
	Issuer        string        `mapstructure:"issuer" default:"blogkit"`
}

func (c *Config) method() jwt.SigningMethod {
	switch c.SigningMethod {
	case "HS384":
		return jwt.SigningMethodHS384
	case "HS512":
		return jwt.SigningMethodHS512
	default:
		return jwt.SigningMethodHS256
	}
}
