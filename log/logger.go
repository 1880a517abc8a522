// Package log 基于 zerolog 的结构化日志，可选脱敏和滚动文件输出。
package log

import (
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"

	"github.com/kochabx/blogkit/log/desensitize"
	"github.com/kochabx/blogkit/log/writer"
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
}

// Logger 内嵌 zerolog.Logger，额外持有脱敏规则和需要关闭的文件
type Logger struct {
	zerolog.Logger
	hook   *desensitize.Hook
	closer io.Closer
}

type settings struct {
	level  zerolog.Level
	caller bool
	hook   *desensitize.Hook
}

type Option func(*settings)

func WithLevel(level zerolog.Level) Option {
	return func(s *settings) { s.level = level }
}

func WithCaller() Option {
	return func(s *settings) { s.caller = true }
}

func WithDesensitize(hook *desensitize.Hook) Option {
	return func(s *settings) { s.hook = hook }
}

// NewWriter 输出 JSON 到 w，测试里用来捕获日志
func NewWriter(w io.Writer, opts ...Option) *Logger {
	s := settings{level: zerolog.TraceLevel}
	for _, opt := range opts {
		opt(&s)
	}
	if s.hook != nil {
		w = s.hook.Writer(w)
	}

	ctx := zerolog.New(w).Level(s.level).With().Timestamp()
	if s.caller {
		ctx = ctx.Caller()
	}
	return &Logger{Logger: ctx.Logger(), hook: s.hook}
}

// New 输出到控制台
func New(opts ...Option) *Logger {
	return NewWriter(writer.Console(), opts...)
}

func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// Hook 未启用脱敏时为 nil
func (l *Logger) Hook() *desensitize.Hook {
	return l.hook
}

// Component 子 Logger 带 component 字段，不接管文件句柄
func (l *Logger) Component(name string) *Logger {
	return &Logger{Logger: l.With().Str("component", name).Logger(), hook: l.hook}
}

func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// G 组件没有注入 Logger 时使用
var G = New()

func SetGlobalLogger(l *Logger) {
	if l != nil {
		G = l
	}
}

func SetGlobalLevel(level zerolog.Level) {
	G.Logger = G.Level(level)
}

func Debug() *zerolog.Event { return G.Debug() }
func Info() *zerolog.Event  { return G.Info() }
func Warn() *zerolog.Event  { return G.Warn() }

// Error 附带堆栈
func Error() *zerolog.Event { return G.Error().Stack() }
