package session

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kochabx/blogkit/errors"
	"github.com/kochabx/blogkit/log"
)

// DefaultRefreshSpec 每分钟检查一次
const DefaultRefreshSpec = "@every 1m"

// Refresher 按 cron 计划检查会话，在过期前 before 时间内主动刷新。
// 实现 transport.Server，由 app.Application 管理生命周期
type Refresher struct {
	ctrl   *Controller
	spec   string
	before time.Duration
	cron   *cron.Cron
	logger *log.Logger

	mu      sync.Mutex
	stopped chan struct{}
}

// NewRefresher spec 为标准 cron 表达式或 @every 描述符
func NewRefresher(ctrl *Controller, spec string, before time.Duration, l *log.Logger) (*Refresher, error) {
	if spec == "" {
		spec = DefaultRefreshSpec
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, err
	}
	if l == nil {
		l = log.G
	}

	return &Refresher{
		ctrl:    ctrl,
		spec:    spec,
		before:  before,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:  l,
		stopped: make(chan struct{}),
	}, nil
}

// Tick 执行一次检查，返回是否发起了刷新
func (r *Refresher) Tick(ctx context.Context) (bool, error) {
	st := r.ctrl.CurrentState()
	if st.State != StateAuthenticated {
		return false, nil
	}
	if st.ExpiresAt.Sub(r.ctrl.clock.Now()) > r.before {
		return false, nil
	}

	_, err := r.ctrl.Refresh(ctx)
	if err != nil {
		if errors.IsAuthExpired(err) {
			r.logger.Info().Err(err).Msg("session could not be refreshed")
		} else {
			r.logger.Warn().Err(err).Msg("session refresh failed")
		}
		return true, err
	}
	return true, nil
}

// Run 启动调度并阻塞到 Shutdown
func (r *Refresher) Run() error {
	if _, err := r.cron.AddFunc(r.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		_, _ = r.Tick(ctx)
	}); err != nil {
		return err
	}

	r.logger.Info().Str("spec", r.spec).Dur("before", r.before).Msg("session refresher started")
	r.cron.Start()
	<-r.stopped
	return nil
}

// Shutdown 停止调度，等待正在执行的刷新结束
func (r *Refresher) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	select {
	case <-r.stopped:
	default:
		close(r.stopped)
	}
	r.mu.Unlock()

	select {
	case <-r.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
