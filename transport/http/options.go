package http

import (
	"github.com/kochabx/blogkit/core/tag"
)

type Options struct {
	Metrics MetricsOption
	Health  HealthOption
}

// MetricsOption 对应配置文件 metrics 段
type MetricsOption struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path" default:"/metrics"`
	GoRuntime bool   `mapstructure:"go_runtime"`
	BuildInfo bool   `mapstructure:"build_info"`
	Process   bool   `mapstructure:"process"`
}

type HealthOption struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" default:"/health"`
}

func applyDefaults[T any](v *T) (*T, error) {
	return v, tag.ApplyDefaults(v)
}
