package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so runs can be
// aggregated and queried by batch, file and request.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for batch correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Batch & Request
	// ========================================================================
	KeyBatchID   = "batch_id"   // Batch identifier (one Warm/Submit call)
	KeyRequestID = "request_id" // Individual block request identifier
	KeyRequests  = "requests"   // Number of requests in a batch
	KeySpans     = "spans"      // Number of read spans after coalescing
	KeyCoalesced = "coalesced"  // Number of requests merged into neighbors
	KeyPriority  = "priority"   // Request or span priority
	KeyWorker    = "worker"     // Worker index within a batch

	// ========================================================================
	// File I/O
	// ========================================================================
	KeyPath      = "path"       // File path
	KeyOffset    = "offset"     // Byte offset of a read
	KeyLength    = "length"     // Bytes requested
	KeyBytesRead = "bytes_read" // Bytes actually read
	KeyEOF       = "eof"        // End of file indicator
	KeySize      = "size"       // File size in bytes
	KeyBlockSize = "block_size" // Block size used to chop a file
	KeyAdvise    = "advise"     // posix_fadvise hint applied
	KeyDirect    = "direct"     // O_DIRECT enabled

	// ========================================================================
	// Handle Pool
	// ========================================================================
	KeyOpenFiles = "open_files" // Descriptors currently open
	KeyRefCount  = "ref_count"  // Acquirers holding an entry
	KeyEvicted   = "evicted"    // Entries closed by eviction
	KeyPoolHit   = "pool_hit"   // Acquire served by an already-open descriptor

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyStatus     = "status"      // Block result status
	KeyAttempt    = "attempt"     // Retry attempt number
	KeyMaxRetries = "max_retries" // Maximum retry attempts
	KeyFiles      = "files"       // Number of files touched
	KeyBytes      = "bytes"       // Total bytes moved
	KeyThroughput = "mb_per_sec"  // Aggregate read throughput

	// ========================================================================
	// Daemon / API
	// ========================================================================
	KeyAddr   = "addr"   // Listen address of the status server
	KeyDir    = "dir"    // Watched directory
	KeyEvent  = "event"  // Filesystem event name
	KeySignal = "signal" // OS signal received
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// BatchID returns a slog.Attr for a batch identifier
func BatchID(id string) slog.Attr {
	return slog.String(KeyBatchID, id)
}

// RequestID returns a slog.Attr for a block request identifier
func RequestID(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}

// Path returns a slog.Attr for a file path
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Offset returns a slog.Attr for a read offset
func Offset(off int64) slog.Attr {
	return slog.Int64(KeyOffset, off)
}

// Length returns a slog.Attr for requested byte count
func Length(n int64) slog.Attr {
	return slog.Int64(KeyLength, n)
}

// BytesRead returns a slog.Attr for bytes actually read
func BytesRead(n int64) slog.Attr {
	return slog.Int64(KeyBytesRead, n)
}

// EOF returns a slog.Attr for the end-of-file indicator
func EOF(eof bool) slog.Attr {
	return slog.Bool(KeyEOF, eof)
}

// Size returns a slog.Attr for a file size
func Size(s int64) slog.Attr {
	return slog.Int64(KeySize, s)
}

// Worker returns a slog.Attr for a worker index
func Worker(i int) slog.Attr {
	return slog.Int(KeyWorker, i)
}

// Priority returns a slog.Attr for a request priority
func Priority(p int) slog.Attr {
	return slog.Int(KeyPriority, p)
}

// Status returns a slog.Attr for a block result status
func Status(s string) slog.Attr {
	return slog.String(KeyStatus, s)
}

// Attempt returns a slog.Attr for a retry attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// MaxRetries returns a slog.Attr for maximum retry attempts
func MaxRetries(n int) slog.Attr {
	return slog.Int(KeyMaxRetries, n)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// OpenFiles returns a slog.Attr for the count of open descriptors
func OpenFiles(n int) slog.Attr {
	return slog.Int(KeyOpenFiles, n)
}

// Evicted returns a slog.Attr for the count of evicted pool entries
func Evicted(n int) slog.Attr {
	return slog.Int(KeyEvicted, n)
}

// Addr returns a slog.Attr for a listen address
func Addr(a string) slog.Attr {
	return slog.String(KeyAddr, a)
}
