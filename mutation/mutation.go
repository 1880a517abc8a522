// Package mutation 执行写操作：通过 gateway 发送，成功后在返回前同步使相关标签失效。
package mutation

import (
	"context"
	"time"

	"github.com/kochabx/blogkit/cache"
	"github.com/kochabx/blogkit/gateway"
	"github.com/kochabx/blogkit/log"
)

// Spec 一个声明式的写操作
type Spec struct {
	Name   string
	Method string
	// Path 相对 baseURL，可以是已经填好参数的路径
	Path        string
	Invalidates []cache.Tag
	Auth        gateway.AuthMode
	Header      map[string]string
}

// WithPath 返回替换了路径的副本，用于 /blogs/{id} 这类带参数的接口
func (s Spec) WithPath(path string) Spec {
	s.Path = path
	return s
}

// Result 成功的写操作
type Result struct {
	Response *gateway.Response
	// Invalidated 被标记为 stale 的缓存键
	Invalidated []cache.Key
}

// Decode 解码响应载荷
func (r *Result) Decode(v any) error {
	return r.Response.Decode(v)
}

// Invalidator 使标签失效，*cache.Cache 实现了它
type Invalidator interface {
	Invalidate(tags ...cache.Tag) []cache.Key
}

// Dispatcher 写操作调度器。写操作从不自动重试
type Dispatcher struct {
	sender      gateway.Sender
	invalidator Invalidator
	logger      *log.Logger
}

type Option func(*Dispatcher)

func WithLogger(l *log.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

func New(sender gateway.Sender, invalidator Invalidator, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sender:      sender,
		invalidator: invalidator,
		logger:      log.G,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Execute 发送写请求。任何错误都不触碰缓存；成功时失效在返回前完成，
// 由此触发的重新获取一定排在失效之后
func (d *Dispatcher) Execute(ctx context.Context, spec Spec, payload any) (*Result, error) {
	start := time.Now()
	resp, err := d.sender.Send(ctx, &gateway.Request{
		Method: spec.Method,
		Path:   spec.Path,
		Body:   payload,
		Header: spec.Header,
		Auth:   spec.Auth,
	})
	if err != nil {
		d.logger.Debug().
			Err(err).
			Str("mutation", spec.Name).
			Dur("duration", time.Since(start)).
			Msg("mutation failed")
		return nil, err
	}

	var keys []cache.Key
	if d.invalidator != nil && len(spec.Invalidates) > 0 {
		keys = d.invalidator.Invalidate(spec.Invalidates...)
	}

	d.logger.Debug().
		Str("mutation", spec.Name).
		Int("status", resp.Status).
		Int("invalidated", len(keys)).
		Dur("duration", time.Since(start)).
		Msg("mutation completed")

	return &Result{Response: resp, Invalidated: keys}, nil
}
