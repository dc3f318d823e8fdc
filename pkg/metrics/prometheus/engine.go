// Package prometheus contains the Prometheus implementations of the
// metrics interfaces consumed by the engine and the descriptor pool.
//
// Importing this package registers its constructors with pkg/metrics:
//
//	import _ "github.com/marmos91/blockwarm/pkg/metrics/prometheus"
package prometheus

import (
	"github.com/marmos91/blockwarm/pkg/metrics"
	"github.com/marmos91/blockwarm/pkg/warm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func init() {
	metrics.RegisterEngineMetricsConstructor(NewEngineMetrics)
}

// engineMetrics is the Prometheus implementation of warm.Metrics.
type engineMetrics struct {
	batchesTotal   prometheus.Counter
	requestsTotal  prometheus.Counter
	readsPlanned   prometheus.Counter
	coalescedTotal prometheus.Counter
	batchRequests  prometheus.Histogram
	batchDuration  prometheus.Histogram
	readsTotal     *prometheus.CounterVec
	readBytes      prometheus.Histogram
	readDuration   prometheus.Histogram
	readsInFlight  prometheus.Gauge
	pending        prometheus.Gauge
}

// NewEngineMetrics creates a new Prometheus-backed engine metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewEngineMetrics() warm.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &engineMetrics{
		batchesTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "blockwarm_batches_total",
				Help: "Total number of finished warming batches",
			},
		),
		requestsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "blockwarm_requests_total",
				Help: "Total number of block requests across all batches",
			},
		),
		readsPlanned: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "blockwarm_spans_total",
				Help: "Total number of physical reads scheduled after coalescing",
			},
		),
		coalescedTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "blockwarm_requests_coalesced_total",
				Help: "Total number of requests merged into a neighboring read",
			},
		),
		batchRequests: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "blockwarm_batch_requests",
				Help: "Distribution of batch sizes in requests",
				Buckets: []float64{
					1,
					4,
					16,
					64,
					256,   // one large file at 256KiB blocks
					1024,
					4096,
					16384, // directory trees
					65536,
				},
			},
		),
		batchDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "blockwarm_batch_duration_seconds",
				Help: "Time from batch submission to completion",
				Buckets: []float64{
					0.001, // 1ms - tiny cached batches
					0.01,  // 10ms
					0.05,  // 50ms
					0.1,   // 100ms
					0.5,   // 500ms
					1,     // 1s
					5,     // 5s
					30,    // 30s - cold spinning disks
					120,   // 2m
				},
			},
		),
		readsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "blockwarm_reads_total",
				Help: "Total number of physical reads by terminal status",
			},
			[]string{"status"}, // "complete", "partial", "eof", "error", "incomplete"
		),
		readBytes: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "blockwarm_read_bytes",
				Help: "Distribution of bytes returned per physical read",
				Buckets: []float64{
					4096,     // 4KiB - page-sized tails
					65536,    // 64KiB
					262144,   // 256KiB - default block size
					1048576,  // 1MiB
					4194304,  // 4MiB - coalesced spans
					16777216, // 16MiB
				},
			},
		),
		readDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "blockwarm_read_duration_seconds",
				Help: "Duration of physical reads",
				Buckets: []float64{
					0.0001, // 100us - page cache hits
					0.001,  // 1ms
					0.005,  // 5ms
					0.01,   // 10ms - spinning disk seek
					0.05,   // 50ms
					0.1,    // 100ms
					0.5,    // 500ms
					1,      // 1s - contended devices
				},
			},
		),
		readsInFlight: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "blockwarm_reads_in_flight",
				Help: "Number of reads currently executing",
			},
		),
		pending: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "blockwarm_requests_pending",
				Help: "Number of requests admitted but not yet terminal",
			},
		),
	}
}

func (m *engineMetrics) RecordBatch(requests, spans, coalesced int, seconds float64) {
	m.batchesTotal.Inc()
	m.requestsTotal.Add(float64(requests))
	m.readsPlanned.Add(float64(spans))
	m.coalescedTotal.Add(float64(coalesced))
	m.batchRequests.Observe(float64(requests))
	m.batchDuration.Observe(seconds)
}

func (m *engineMetrics) RecordRead(status string, bytes int64, seconds float64) {
	m.readsTotal.WithLabelValues(status).Inc()
	m.readBytes.Observe(float64(bytes))
	m.readDuration.Observe(seconds)
}

func (m *engineMetrics) SetInFlight(n int) {
	m.readsInFlight.Set(float64(n))
}

func (m *engineMetrics) SetPending(n int) {
	m.pending.Set(float64(n))
}
