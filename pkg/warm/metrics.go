package warm

// Metrics is the instrumentation hook consumed by the engine.
// Implementations must be safe for concurrent use. A nil Metrics in
// Config disables all recording with zero overhead.
type Metrics interface {
	// RecordBatch is called once per finished batch with the request
	// count, the number of physical reads after coalescing, the number
	// of requests merged into a neighbor and the batch duration.
	RecordBatch(requests, spans, coalesced int, seconds float64)

	// RecordRead is called once per physical read with the terminal
	// status name, the bytes read and the read duration.
	RecordRead(status string, bytes int64, seconds float64)

	// SetInFlight is called with the number of reads currently executing.
	SetInFlight(n int)

	// SetPending is called with the number of requests admitted but not
	// yet terminal.
	SetPending(n int)
}
