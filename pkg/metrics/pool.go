package metrics

import (
	"github.com/marmos91/blockwarm/pkg/fdpool"
)

// NewPoolMetrics creates a new Prometheus-backed descriptor pool metrics
// instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called),
// which disables pool instrumentation with zero overhead.
func NewPoolMetrics() fdpool.Metrics {
	if !IsEnabled() {
		return nil
	}

	return newPrometheusPoolMetrics()
}

// newPrometheusPoolMetrics is implemented in pkg/metrics/prometheus/pool.go
// This indirection avoids import cycles while keeping the API clean
var newPrometheusPoolMetrics func() fdpool.Metrics

// RegisterPoolMetricsConstructor registers the Prometheus pool metrics
// constructor. Called by pkg/metrics/prometheus/pool.go during package
// initialization.
func RegisterPoolMetricsConstructor(constructor func() fdpool.Metrics) {
	newPrometheusPoolMetrics = constructor
}
