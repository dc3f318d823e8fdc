package prometheus

import (
	"github.com/marmos91/blockwarm/pkg/fdpool"
	"github.com/marmos91/blockwarm/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func init() {
	metrics.RegisterPoolMetricsConstructor(NewPoolMetrics)
}

// poolMetrics is the Prometheus implementation of fdpool.Metrics.
type poolMetrics struct {
	opens     prometheus.Counter
	hits      prometheus.Counter
	evictions prometheus.Counter
	openFiles prometheus.Gauge
}

// NewPoolMetrics creates a new Prometheus-backed descriptor pool metrics
// instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewPoolMetrics() fdpool.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &poolMetrics{
		opens: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "blockwarm_pool_opens_total",
				Help: "Total number of file descriptors opened by the pool",
			},
		),
		hits: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "blockwarm_pool_hits_total",
				Help: "Total number of acquires served by an already-open descriptor",
			},
		),
		evictions: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "blockwarm_pool_evictions_total",
				Help: "Total number of descriptors closed by sweeping or capacity eviction",
			},
		),
		openFiles: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "blockwarm_pool_open_files",
				Help: "Number of descriptors currently held open by the pool",
			},
		),
	}
}

func (m *poolMetrics) RecordOpen() {
	m.opens.Inc()
}

func (m *poolMetrics) RecordHit() {
	m.hits.Inc()
}

func (m *poolMetrics) RecordEviction(n int) {
	m.evictions.Add(float64(n))
}

func (m *poolMetrics) SetOpenFiles(n int) {
	m.openFiles.Set(float64(n))
}
