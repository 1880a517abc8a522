package cache

import (
	"math"
	"math/rand/v2"
	"time"
)

// RetryStrategy 重试间隔策略
type RetryStrategy interface {
	// NextRetry 第 retryCount 次重试前的等待时间，从 0 开始
	NextRetry(retryCount int) time.Duration
}

// RetryPolicy 查询失败时的重试策略。只有传输错误会重试，领域错误直接返回
type RetryPolicy struct {
	MaxRetries int           `json:"maxRetries" mapstructure:"max_retries" default:"2" validate:"gte=0"`
	BaseDelay  time.Duration `json:"baseDelay" mapstructure:"base_delay" default:"500ms"`
	MaxDelay   time.Duration `json:"maxDelay" mapstructure:"max_delay" default:"10s"`
	Jitter     bool          `json:"jitter" mapstructure:"jitter" default:"true"`
}

// DefaultRetryPolicy 最多重试两次，指数退避
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   10 * time.Second,
		Jitter:     true,
	}
}

// Strategy 按配置生成退避策略
func (p RetryPolicy) Strategy() RetryStrategy {
	if p.MaxRetries <= 0 {
		return NoRetry{}
	}
	return NewExponentialBackoff(p.BaseDelay, p.MaxDelay, 2, p.Jitter)
}

// ExponentialBackoff 指数退避
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	Jitter     bool
}

func NewExponentialBackoff(baseDelay, maxDelay time.Duration, multiplier float64, jitter bool) *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:  baseDelay,
		MaxDelay:   maxDelay,
		Multiplier: multiplier,
		Jitter:     jitter,
	}
}

// NextRetry delay = min(baseDelay * multiplier^retryCount, maxDelay)，抖动 ±25%
func (e *ExponentialBackoff) NextRetry(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}

	delay := float64(e.BaseDelay) * math.Pow(e.Multiplier, float64(retryCount))
	if e.MaxDelay > 0 && delay > float64(e.MaxDelay) {
		delay = float64(e.MaxDelay)
	}

	if e.Jitter && delay > 0 {
		delay += delay * 0.25 * (rand.Float64()*2 - 1)
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// FixedDelay 固定间隔
type FixedDelay struct {
	Delay time.Duration
}

func (f FixedDelay) NextRetry(int) time.Duration {
	return f.Delay
}

// NoRetry 不等待，配合 MaxRetries=0 使用
type NoRetry struct{}

func (NoRetry) NextRetry(int) time.Duration {
	return 0
}
