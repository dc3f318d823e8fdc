// Package health provides shared types for daemon status responses.
package health

// Response represents the daemon health response structure.
type Response struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Data      struct {
		Service   string `json:"service"`
		Dirs      int    `json:"dirs"`
		StartedAt string `json:"started_at"`
		Uptime    string `json:"uptime"`
		UptimeSec int64  `json:"uptime_sec"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}

// StatsResponse represents the daemon stats response structure.
type StatsResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Data      struct {
		Watch struct {
			Dirs        int   `json:"dirs"`
			Events      int64 `json:"events"`
			FilesWarmed int64 `json:"files_warmed"`
			BytesWarmed int64 `json:"bytes_warmed"`
			Failures    int64 `json:"failures"`
		} `json:"watch"`
		Engine struct {
			Batches   int64 `json:"batches"`
			Requests  int64 `json:"requests"`
			BytesRead int64 `json:"bytes_read"`
			Coalesced int64 `json:"coalesced"`
			InFlight  int64 `json:"in_flight"`
			Pending   int64 `json:"pending"`
		} `json:"engine"`
		Pool struct {
			Open        int   `json:"open"`
			Opens       int64 `json:"opens"`
			Hits        int64 `json:"hits"`
			Evictions   int64 `json:"evictions"`
			FailedOpens int64 `json:"failed_opens"`
		} `json:"pool"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}
