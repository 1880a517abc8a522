package mockapi

import (
	"github.com/kochabx/blogkit/core/auth/jwt"
	"github.com/kochabx/blogkit/core/tag"
	"github.com/kochabx/blogkit/core/validator"
)

// Config mock 后端配置
type Config struct {
	JWT          jwt.Config `mapstructure:"jwt"`
	PageSize     int        `mapstructure:"page_size" default:"10" validate:"gt=0"`
	PasswordCost int        `mapstructure:"password_cost" default:"10" validate:"gte=4,lte=31"`
	// Categories 启动时预置的分类
	Categories []string `mapstructure:"categories" default:"Technology,Travel,Food"`
}

func (c *Config) init() error {
	if err := tag.ApplyDefaults(c); err != nil {
		return err
	}
	return validator.Validate.Struct(c)
}
