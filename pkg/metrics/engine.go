package metrics

import (
	"github.com/marmos91/blockwarm/pkg/warm"
)

// NewEngineMetrics creates a new Prometheus-backed engine metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
// When nil is returned, callers should pass nil to the engine, which
// results in zero overhead.
//
// Example usage:
//
//	// With metrics enabled
//	metrics.InitRegistry()
//	engineCfg.Metrics = metrics.NewEngineMetrics()
//
//	// Without metrics (zero overhead)
//	engineCfg.Metrics = nil
func NewEngineMetrics() warm.Metrics {
	if !IsEnabled() {
		return nil
	}

	return newPrometheusEngineMetrics()
}

// newPrometheusEngineMetrics is implemented in pkg/metrics/prometheus/engine.go
// This indirection avoids import cycles while keeping the API clean
var newPrometheusEngineMetrics func() warm.Metrics

// RegisterEngineMetricsConstructor registers the Prometheus engine metrics
// constructor. Called by pkg/metrics/prometheus/engine.go during package
// initialization.
func RegisterEngineMetricsConstructor(constructor func() warm.Metrics) {
	newPrometheusEngineMetrics = constructor
}
