package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sla_scheduler"

// Metrics 汇总排课运行相关的指标，每个进程创建一份并注册到自己的 Registry 上
type Metrics struct {
	registry *prometheus.Registry

	runsTotal         *prometheus.CounterVec
	runDuration       prometheus.Histogram
	runGenerations    prometheus.Histogram
	lastBestFitness   prometheus.Gauge
	cacheLookupsTotal *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "已结束的排课运行数量",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "单次排课运行的耗时",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		runGenerations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_generations",
			Help:      "单次排课运行实际迭代的代数",
			Buckets:   prometheus.LinearBuckets(50, 50, 10),
		}),
		lastBestFitness: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_best_fitness",
			Help:      "最近一次成功运行的最优适应度",
		}),
		cacheLookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluator_cache_lookups_total",
			Help:      "适应度缓存的查询次数",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.runsTotal,
		m.runDuration,
		m.runGenerations,
		m.lastBestFitness,
		m.cacheLookupsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RunSucceeded(duration time.Duration, generations int, bestFitness float64) {
	m.runsTotal.WithLabelValues("succeeded").Inc()
	m.runDuration.Observe(duration.Seconds())
	m.runGenerations.Observe(float64(generations))
	m.lastBestFitness.Set(bestFitness)
}

func (m *Metrics) RunFailed(duration time.Duration) {
	m.runsTotal.WithLabelValues("failed").Inc()
	m.runDuration.Observe(duration.Seconds())
}

func (m *Metrics) CacheLookups(hits uint64, misses uint64) {
	m.cacheLookupsTotal.WithLabelValues("hit").Add(float64(hits))
	m.cacheLookupsTotal.WithLabelValues("miss").Add(float64(misses))
}
