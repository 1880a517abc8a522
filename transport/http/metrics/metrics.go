// Package metrics 把运行时采集器和业务指标放在同一个注册表里暴露。
package metrics

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors 需要额外注册的内置采集器
type Collectors struct {
	GoRuntime bool
	BuildInfo bool
	Process   bool
}

// Register 已注册过的采集器跳过，同一注册表可以多次调用
func Register(reg prometheus.Registerer, c Collectors) error {
	var cs []prometheus.Collector
	if c.GoRuntime {
		cs = append(cs, collectors.NewGoCollector(collectors.WithGoCollectorRuntimeMetrics(
			collectors.GoRuntimeMetricsRule{Matcher: regexp.MustCompile("/sched/.*")},
		)))
	}
	if c.BuildInfo {
		cs = append(cs, collectors.NewBuildInfoCollector())
	}
	if c.Process {
		cs = append(cs, collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	for _, col := range cs {
		if err := reg.Register(col); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}

// Handler OpenMetrics 格式，抓取次数也计入 reg
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.InstrumentMetricHandler(reg, promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Registry:          reg,
	}))
}
