package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 缓存指标。未启用时所有方法都是空操作
type Metrics struct {
	enabled bool

	Fetches       *prometheus.CounterVec // 按结果 success/domain/transport/auth_expired
	FetchDuration prometheus.Histogram
	Retries       prometheus.Counter
	Invalidated   prometheus.Counter // 被标记为 stale 的条目数
	Collected     prometheus.Counter // 被 GC 的条目数
	Entries       prometheus.Gauge
	Subscribers   prometheus.Gauge
}

// NewMetrics reg 为 nil 时不注册任何指标
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}

	f := promauto.With(reg)
	return &Metrics{
		enabled: true,
		Fetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "fetches_total",
			Help:      "Total number of query fetches by outcome",
		}, []string{"outcome"}),
		FetchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "fetch_duration_seconds",
			Help:      "Query fetch duration in seconds, retries included",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		Retries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "retries_total",
			Help:      "Total number of query fetch retries",
		}),
		Invalidated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "invalidated_total",
			Help:      "Total number of entries marked stale by tag invalidation",
		}),
		Collected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "collected_total",
			Help:      "Total number of unused entries removed after the grace period",
		}),
		Entries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Current number of cache entries",
		}),
		Subscribers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "subscribers",
			Help:      "Current number of active subscriptions",
		}),
	}
}

func (m *Metrics) fetched(outcome string, seconds float64) {
	if !m.enabled {
		return
	}
	m.Fetches.WithLabelValues(outcome).Inc()
	m.FetchDuration.Observe(seconds)
}

func (m *Metrics) retried() {
	if m.enabled {
		m.Retries.Inc()
	}
}

func (m *Metrics) invalidated(n int) {
	if m.enabled {
		m.Invalidated.Add(float64(n))
	}
}

func (m *Metrics) collected() {
	if m.enabled {
		m.Collected.Inc()
	}
}

func (m *Metrics) gauges(entries, subscribers int) {
	if !m.enabled {
		return
	}
	m.Entries.Set(float64(entries))
	m.Subscribers.Set(float64(subscribers))
}
