// Package app 管理长期运行组件（mock 后端、会话刷新器、watch 循环）的启动和关闭。
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kochabx/blogkit/log"
	"github.com/kochabx/blogkit/transport"
)

var (
	ErrAlreadyStarted = errors.New("app: already started")
	ErrClosePanic     = errors.New("app: close function panicked")
	ErrNilServer      = errors.New("app: nil server")
	ErrNilClose       = errors.New("app: nil close function")
)

// CloseFunc 所有服务器停止后按登记的逆序执行，和 defer 一致
type CloseFunc struct {
	Name    string
	Fn      func(context.Context) error
	Timeout time.Duration
}

// Application 任一服务器退出、收到信号或根上下文取消都会触发整体关闭
type Application struct {
	ctx             context.Context
	cancel          context.CancelFunc
	shutdownTimeout time.Duration
	closeTimeout    time.Duration
	signals         []os.Signal
	logger          *log.Logger

	mu         sync.RWMutex
	servers    []transport.Server
	closeFuncs []CloseFunc
	started    bool
}

type Option func(*Application)

func WithContext(ctx context.Context) Option {
	return func(a *Application) {
		if ctx != nil {
			a.ctx = ctx
		}
	}
}

func WithShutdownTimeout(d time.Duration) Option {
	return func(a *Application) {
		if d > 0 {
			a.shutdownTimeout = d
		}
	}
}

// WithCloseTimeout CloseFunc 未指定超时时使用
func WithCloseTimeout(d time.Duration) Option {
	return func(a *Application) {
		if d > 0 {
			a.closeTimeout = d
		}
	}
}

// WithSignals 默认 SIGINT、SIGTERM、SIGQUIT
func WithSignals(signals ...os.Signal) Option {
	return func(a *Application) {
		if len(signals) > 0 {
			a.signals = slices.Clone(signals)
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(a *Application) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithServers 忽略 nil，同一个服务器只登记一次
func WithServers(servers ...transport.Server) Option {
	return func(a *Application) {
		for _, s := range servers {
			if s != nil && !slices.Contains(a.servers, s) {
				a.servers = append(a.servers, s)
			}
		}
	}
}

func WithServer(s transport.Server) Option {
	return WithServers(s)
}

func WithClose(name string, fn func(context.Context) error, timeout time.Duration) Option {
	return func(a *Application) {
		if fn != nil {
			a.closeFuncs = append(a.closeFuncs, CloseFunc{Name: name, Fn: fn, Timeout: timeout})
		}
	}
}

func New(opts ...Option) *Application {
	a := &Application{
		ctx:             context.Background(),
		shutdownTimeout: 30 * time.Second,
		closeTimeout:    30 * time.Second,
		signals:         []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT},
		logger:          log.G,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.ctx, a.cancel = context.WithCancel(a.ctx)

	for i := range a.closeFuncs {
		if a.closeFuncs[i].Timeout <= 0 {
			a.closeFuncs[i].Timeout = a.closeTimeout
		}
	}
	return a
}

// AddServer 只能在 Start 之前调用
func (a *Application) AddServer(s transport.Server) error {
	if s == nil {
		return ErrNilServer
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return ErrAlreadyStarted
	}
	WithServer(s)(a)
	return nil
}

// RegisterClose 运行期间也可以登记
func (a *Application) RegisterClose(name string, fn func(context.Context) error, timeout time.Duration) error {
	if fn == nil {
		return ErrNilClose
	}
	if timeout <= 0 {
		timeout = a.closeTimeout
	}
	a.mu.Lock()
	a.closeFuncs = append(a.closeFuncs, CloseFunc{Name: name, Fn: fn, Timeout: timeout})
	a.mu.Unlock()
	return nil
}

// Start 阻塞到所有服务器停止并执行完关闭函数，返回第一个服务器错误
func (a *Application) Start() error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return ErrAlreadyStarted
	}
	a.started = true
	servers := slices.Clone(a.servers)
	a.mu.Unlock()

	ctx, stop := signal.NotifyContext(a.ctx, a.signals...)
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)
	for _, s := range servers {
		eg.Go(func() error {
			// 正常退出也要带动其它服务器
			defer a.cancel()
			return s.Run()
		})
		eg.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
			defer cancel()
			return s.Shutdown(sctx)
		})
	}
	// 没有服务器时也阻塞到信号或 Stop
	eg.Go(func() error {
		<-ctx.Done()
		return nil
	})

	err := eg.Wait()
	a.logger.Info().Int("servers", len(servers)).Msg("application stopping")
	a.runCloseTasks()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stop 触发关闭，Start 返回前会执行关闭函数
func (a *Application) Stop() {
	a.cancel()
}

func (a *Application) runCloseTasks() {
	a.mu.RLock()
	fns := slices.Clone(a.closeFuncs)
	a.mu.RUnlock()

	for _, cf := range slices.Backward(fns) {
		_ = a.runCloseTask(cf)
	}
}

func (a *Application) runCloseTask(cf CloseFunc) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), cf.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%w: %v", ErrClosePanic, r)
			}
		}()
		done <- cf.Fn(ctx)
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		a.logger.Error().Err(err).Str("close", cf.Name).Msg("close function failed")
	}
	return err
}

type ApplicationInfo struct {
	Started     bool `json:"started"`
	ServerCount int  `json:"server_count"`
	CloseCount  int  `json:"close_count"`
}

func (a *Application) Info() ApplicationInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return ApplicationInfo{Started: a.started, ServerCount: len(a.servers), CloseCount: len(a.closeFuncs)}
}
