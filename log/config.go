package log

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/kochabx/blogkit/core/tag"
	"github.com/kochabx/blogkit/log/desensitize"
	"github.com/kochabx/blogkit/log/writer"
)

// Config 对应配置文件 log 段
type Config struct {
	Level       string      `mapstructure:"level" default:"info" validate:"oneof=trace debug info warn error"`
	Caller      bool        `mapstructure:"caller"`
	Desensitize bool        `mapstructure:"desensitize" default:"true"`
	File        *FileConfig `mapstructure:"file"`
}

// FileConfig 写文件时的滚动策略，Console 为 true 时同时输出到 stderr
type FileConfig struct {
	Dir        string            `mapstructure:"dir" default:"log"`
	Name       string            `mapstructure:"name" default:"blogkit"`
	Ext        string            `mapstructure:"ext" default:"log"`
	Rotate     writer.RotateMode `mapstructure:"rotate"`
	MaxAge     int               `mapstructure:"max_age" default:"24"`
	Interval   int               `mapstructure:"interval" default:"1"`
	MaxSizeMB  int               `mapstructure:"max_size_mb" default:"100"`
	MaxBackups int               `mapstructure:"max_backups" default:"5"`
	Compress   bool              `mapstructure:"compress"`
	Console    bool              `mapstructure:"console"`
}

func (c FileConfig) open() (io.WriteCloser, error) {
	if err := tag.ApplyDefaults(&c); err != nil {
		return nil, err
	}
	return writer.Open(writer.File{
		Dir:        c.Dir,
		Name:       c.Name,
		Ext:        c.Ext,
		Mode:       c.Rotate,
		MaxAge:     c.MaxAge,
		Interval:   c.Interval,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		Compress:   c.Compress,
	})
}

// FromConfig 未配置 File 时只写控制台
func FromConfig(c Config) (*Logger, error) {
	level := zerolog.InfoLevel
	if c.Level != "" {
		l, err := zerolog.ParseLevel(c.Level)
		if err != nil {
			return nil, fmt.Errorf("log: invalid level %q: %w", c.Level, err)
		}
		level = l
	}

	opts := []Option{WithLevel(level)}
	if c.Caller {
		opts = append(opts, WithCaller())
	}
	if c.Desensitize {
		opts = append(opts, WithDesensitize(desensitize.NewHook(desensitize.Builtin()...)))
	}

	if c.File == nil {
		return New(opts...), nil
	}
	f, err := c.File.open()
	if err != nil {
		return nil, err
	}
	var out io.Writer = f
	if c.File.Console {
		out = zerolog.MultiLevelWriter(f, writer.Console())
	}
	l := NewWriter(out, opts...)
	l.closer = f
	return l, nil
}
