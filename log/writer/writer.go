// Package writer 提供控制台和滚动文件两种输出。
package writer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Console 人类可读格式，写 stderr，stdout 留给 CLI 的 JSON 输出
func Console() io.Writer {
	return zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.TimeOnly,
		FormatLevel: func(i any) string {
			return strings.ToUpper(fmt.Sprintf("%-5s", i))
		},
	}
}

type RotateMode int

const (
	// RotateByTime rotatelogs，按小时切分
	RotateByTime RotateMode = iota
	// RotateBySize lumberjack，按 MB 切分
	RotateBySize
)

func (m *RotateMode) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "", "time":
		*m = RotateByTime
	case "size":
		*m = RotateBySize
	default:
		return fmt.Errorf("writer: unknown rotate mode %q", text)
	}
	return nil
}

func (m RotateMode) String() string {
	if m == RotateBySize {
		return "size"
	}
	return "time"
}

// File 文件输出参数。MaxAge 对时间模式是小时，对大小模式是天
type File struct {
	Dir        string
	Name       string
	Ext        string
	Mode       RotateMode
	MaxAge     int
	Interval   int
	MaxSizeMB  int
	MaxBackups int
	Compress   bool
}

func (f File) path(pattern string) string {
	name := f.Name
	if pattern != "" {
		name += "." + pattern
	}
	return filepath.Join(f.Dir, name+"."+f.Ext)
}

// Open 目录不存在时创建，返回的 writer 都实现 io.Closer
func Open(f File) (io.WriteCloser, error) {
	if f.Dir != "" {
		if err := os.MkdirAll(f.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("writer: create log dir: %w", err)
		}
	}

	switch f.Mode {
	case RotateBySize:
		return &lumberjack.Logger{
			Filename:   f.path(""),
			MaxSize:    f.MaxSizeMB,
			MaxBackups: f.MaxBackups,
			MaxAge:     f.MaxAge,
			Compress:   f.Compress,
		}, nil
	case RotateByTime:
		rl, err := rotatelogs.New(
			f.path("%Y%m%d%H"),
			rotatelogs.WithLinkName(f.path("")),
			rotatelogs.WithMaxAge(time.Duration(f.MaxAge)*time.Hour),
			rotatelogs.WithRotationTime(time.Duration(f.Interval)*time.Hour),
		)
		if err != nil {
			return nil, fmt.Errorf("writer: time rotation: %w", err)
		}
		return rl, nil
	default:
		return nil, fmt.Errorf("writer: unsupported rotate mode %d", f.Mode)
	}
}
