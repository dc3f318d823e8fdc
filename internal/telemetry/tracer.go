package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for warming operations.
// Batch-level keys use "batch." prefix, per-file keys "file.",
// read-level keys "read.", and handle pool keys "pool.".
const (
	// ========================================================================
	// Batch attributes
	// ========================================================================
	AttrBatchID    = "batch.id"         // Batch identifier
	AttrRequests   = "batch.requests"   // Block requests submitted
	AttrSpans      = "batch.spans"      // Physical reads after coalescing
	AttrCoalesced  = "batch.coalesced"  // Requests merged into a neighbor
	AttrBytesRead  = "batch.bytes_read" // Total bytes read by the batch
	AttrIncomplete = "batch.incomplete" // Requests left incomplete at deadline
	AttrFailed     = "batch.failed"     // Requests that ended in Error
	AttrPriority   = "batch.priority"   // Priority assigned at planning time

	// ========================================================================
	// File attributes
	// ========================================================================
	AttrPath  = "file.path" // File path
	AttrSize  = "file.size" // File size at planning time
	AttrFiles = "file.count"

	// ========================================================================
	// Read attributes
	// ========================================================================
	AttrOffset = "read.offset" // I/O offset
	AttrLength = "read.length" // Byte count requested
	AttrStatus = "read.status" // Result status (complete, partial, eof, error)
	AttrWorker = "read.worker" // Worker that issued the read

	// ========================================================================
	// Handle pool attributes
	// ========================================================================
	AttrOpenFiles = "pool.open_files"
	AttrDirect    = "pool.direct" // O_DIRECT enabled
	AttrAdvise    = "pool.advise" // posix_fadvise hint in effect

	// ========================================================================
	// Watch attributes
	// ========================================================================
	AttrDir   = "watch.dir"   // Watched directory
	AttrEvent = "watch.event" // Filesystem event kind
)

// Span names for operations.
// Format: <component>.<operation>
const (
	// Root span for one submitted batch, from Submit to completion.
	SpanBatch = "warm.batch"

	// Whole-file planning (stat + chop).
	SpanPlan = "warm.plan"

	// One filesystem event handled by the watch daemon.
	SpanWatchEvent = "watch.event"
)

// BatchID returns an attribute for batch identifier
func BatchID(id string) attribute.KeyValue {
	return attribute.String(AttrBatchID, id)
}

// Path returns an attribute for file path
func Path(path string) attribute.KeyValue {
	return attribute.String(AttrPath, path)
}

// Size returns an attribute for file size
func Size(size int64) attribute.KeyValue {
	return attribute.Int64(AttrSize, size)
}

// Files returns an attribute for file count
func Files(n int) attribute.KeyValue {
	return attribute.Int(AttrFiles, n)
}

// Offset returns an attribute for read offset
func Offset(offset int64) attribute.KeyValue {
	return attribute.Int64(AttrOffset, offset)
}

// Length returns an attribute for requested byte count
func Length(length int64) attribute.KeyValue {
	return attribute.Int64(AttrLength, length)
}

// ReadStatus returns an attribute for a result status
func ReadStatus(status string) attribute.KeyValue {
	return attribute.String(AttrStatus, status)
}

// Worker returns an attribute for worker index
func Worker(id int) attribute.KeyValue {
	return attribute.Int(AttrWorker, id)
}

// BytesRead returns an attribute for bytes actually read
func BytesRead(n int64) attribute.KeyValue {
	return attribute.Int64(AttrBytesRead, n)
}

// Priority returns an attribute for request priority
func Priority(p int) attribute.KeyValue {
	return attribute.Int(AttrPriority, p)
}

// Direct returns an attribute for the O_DIRECT flag
func Direct(on bool) attribute.KeyValue {
	return attribute.Bool(AttrDirect, on)
}

// Advise returns an attribute for the fadvise hint name
func Advise(hint string) attribute.KeyValue {
	return attribute.String(AttrAdvise, hint)
}

// Dir returns an attribute for a watched directory
func Dir(dir string) attribute.KeyValue {
	return attribute.String(AttrDir, dir)
}

// Event returns an attribute for a filesystem event kind
func Event(kind string) attribute.KeyValue {
	return attribute.String(AttrEvent, kind)
}

// StartPlanSpan starts a span for planning one file.
func StartPlanSpan(ctx context.Context, path string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		Path(path),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanPlan, trace.WithAttributes(allAttrs...))
}

// StartWatchSpan starts a span for one filesystem event handled by the
// watch daemon.
func StartWatchSpan(ctx context.Context, event, path string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		Event(event),
		Path(path),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanWatchEvent, trace.WithAttributes(allAttrs...))
}
