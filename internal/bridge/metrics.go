package bridge

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 为桥接层指标；未启用时为空实现。
type Metrics interface {
	ObserveCollection(outcome string, d time.Duration)
	IncMessage(action, outcome string)
	ObserveStoreWrite(op string, d time.Duration)
	IncCacheHit()
	IncCacheMiss()
	Handler() http.Handler
}

type promMetrics struct {
	reg                *prometheus.Registry
	collections        *prometheus.CounterVec
	collectionDuration prometheus.Histogram
	messages           *prometheus.CounterVec
	storeWrites        *prometheus.HistogramVec
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
}

// NewMetrics 创建指标；每个实例使用独立的 Registry，便于测试中重复创建。
func NewMetrics(enabled bool) Metrics {
	if !enabled {
		return noopMetrics{}
	}
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &promMetrics{
		reg: reg,
		collections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "collector_collections_total",
			Help: "Total number of collections by outcome",
		}, []string{"outcome"}),
		collectionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "collector_collection_duration_seconds",
			Help:    "Duration of startCollect in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
		messages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "collector_messages_total",
			Help: "Total number of bridge messages by action and outcome",
		}, []string{"action", "outcome"}),
		storeWrites: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "collector_store_write_duration_seconds",
			Help:    "Duration of store write operations in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		cacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "collector_cache_hits_total",
			Help: "Total number of read cache hits",
		}),
		cacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "collector_cache_misses_total",
			Help: "Total number of read cache misses",
		}),
	}
}

func (m *promMetrics) ObserveCollection(outcome string, d time.Duration) {
	m.collections.WithLabelValues(outcome).Inc()
	m.collectionDuration.Observe(d.Seconds())
}

func (m *promMetrics) IncMessage(action, outcome string) {
	m.messages.WithLabelValues(action, outcome).Inc()
}

func (m *promMetrics) ObserveStoreWrite(op string, d time.Duration) {
	m.storeWrites.WithLabelValues(op).Observe(d.Seconds())
}

func (m *promMetrics) IncCacheHit()  { m.cacheHits.Inc() }
func (m *promMetrics) IncCacheMiss() { m.cacheMisses.Inc() }

func (m *promMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// noopMetrics 在未启用指标时使用。
type noopMetrics struct{}

func (noopMetrics) ObserveCollection(_ string, _ time.Duration) {}
func (noopMetrics) IncMessage(_, _ string)                      {}
func (noopMetrics) ObserveStoreWrite(_ string, _ time.Duration) {}
func (noopMetrics) IncCacheHit()                                {}
func (noopMetrics) IncCacheMiss()                               {}
func (noopMetrics) Handler() http.Handler                       { return http.NotFoundHandler() }
