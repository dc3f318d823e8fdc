package handlers

import (
	"net/http"
	"time"

	"github.com/marmos91/blockwarm/pkg/fdpool"
	"github.com/marmos91/blockwarm/pkg/warm"
	"github.com/marmos91/blockwarm/pkg/watch"
)

// StatsSource supplies the counters served by the status endpoints.
// *watch.Daemon implements it.
type StatsSource interface {
	Stats() watch.Stats
	EngineStats() warm.Stats
	PoolStats() fdpool.Stats
}

// StatusHandler handles the health and stats endpoints.
//
// Both endpoints are unauthenticated:
//   - Healthz: Is the daemon watching anything?
//   - Stats: Counters for the watcher, the engine and the descriptor pool
type StatusHandler struct {
	source    StatsSource
	startTime time.Time
}

// NewStatusHandler creates a new status handler.
//
// The source parameter may be nil, in which case both endpoints report
// unhealthy until a daemon is wired in.
func NewStatusHandler(source StatsSource) *StatusHandler {
	return &StatusHandler{
		source:    source,
		startTime: time.Now(),
	}
}

// Healthz handles GET /healthz - combined liveness and readiness probe.
//
// Returns 200 OK when the daemon is running and watching at least one
// directory; 503 Service Unavailable otherwise. Designed for Kubernetes
// probes and load-balancer checks.
func (h *StatusHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("watcher not running"))
		return
	}

	stats := h.source.Stats()
	if stats.Dirs == 0 {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("no directories watched"))
		return
	}

	uptime := time.Since(h.startTime)

	writeJSON(w, http.StatusOK, healthyResponse(map[string]interface{}{
		"service":    "blockwarm",
		"dirs":       stats.Dirs,
		"started_at": h.startTime.UTC().Format(time.RFC3339),
		"uptime":     uptime.Round(time.Second).String(),
		"uptime_sec": int64(uptime.Seconds()),
	}))
}

// EngineStats mirrors the engine counters with JSON field names.
type EngineStats struct {
	Batches   int64 `json:"batches"`
	Requests  int64 `json:"requests"`
	BytesRead int64 `json:"bytes_read"`
	Coalesced int64 `json:"coalesced"`
	InFlight  int64 `json:"in_flight"`
	Pending   int64 `json:"pending"`
}

// PoolStats mirrors the descriptor pool counters with JSON field names.
type PoolStats struct {
	Open        int   `json:"open"`
	Opens       int64 `json:"opens"`
	Hits        int64 `json:"hits"`
	Evictions   int64 `json:"evictions"`
	FailedOpens int64 `json:"failed_opens"`
}

// StatsResponse aggregates watcher, engine and descriptor pool counters.
type StatsResponse struct {
	Watch  watch.Stats `json:"watch"`
	Engine EngineStats `json:"engine"`
	Pool   PoolStats   `json:"pool"`
}

// Stats handles GET /stats - runtime counters.
//
// Returns a snapshot of the watcher, engine and descriptor pool counters.
// Returns 503 Service Unavailable when no daemon is wired in.
func (h *StatusHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("watcher not running"))
		return
	}

	engine := h.source.EngineStats()
	pool := h.source.PoolStats()

	writeJSON(w, http.StatusOK, okResponse(StatsResponse{
		Watch: h.source.Stats(),
		Engine: EngineStats{
			Batches:   engine.Batches,
			Requests:  engine.Requests,
			BytesRead: engine.BytesRead,
			Coalesced: engine.Coalesced,
			InFlight:  engine.InFlight,
			Pending:   engine.Pending,
		},
		Pool: PoolStats{
			Open:        pool.Open,
			Opens:       pool.Opens,
			Hits:        pool.Hits,
			Evictions:   pool.Evictions,
			FailedOpens: pool.FailedOpens,
		},
	}))
}
