// Package metrics provides optional Prometheus instrumentation.
//
// Metrics are opt-in: nothing is collected until InitRegistry is called.
// Consumers obtain instrumentation hooks through the New*Metrics
// constructors, which return nil while metrics are disabled so the
// instrumented code pays nothing.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
)

// InitRegistry creates the process-wide Prometheus registry and enables
// metrics collection. Safe to call more than once; later calls are no-ops.
//
// Must run before any New*Metrics constructor, or those constructors
// return nil and their callers stay uninstrumented.
func InitRegistry() {
	mu.Lock()
	defer mu.Unlock()

	if registry != nil {
		return
	}

	registry = prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return registry != nil
}

// GetRegistry returns the process-wide registry, or nil when metrics
// are disabled. Collector constructors use it with promauto.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// Handler returns the HTTP handler serving the /metrics endpoint.
// Returns nil when metrics are disabled.
func Handler() http.Handler {
	mu.RLock()
	defer mu.RUnlock()

	if registry == nil {
		return nil
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
