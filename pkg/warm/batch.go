package warm

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/blockwarm/internal/logger"
)

// Batch tracks one submitted request set until every request has a
// terminal result. Results live in a slice indexed by submission position;
// each worker writes only the slots of the requests it executed, and the
// batch is done when the outstanding count reaches zero.
type Batch struct {
	// ID identifies the batch in logs and traces.
	ID string

	engine  *Engine
	opts    Options
	reqs    []BlockRequest
	results []BlockResult

	remaining atomic.Int64
	bytesRead atomic.Int64
	done      chan struct{}
	finishOne sync.Once

	start     time.Time
	cancel    context.CancelFunc
	traceSpan trace.Span

	spans     int
	coalesced int
}

// Done returns a channel closed once every request has a terminal result.
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

// Wait blocks until the batch completes and returns its results in
// submission order. The context bounds only the wait itself: cancelling it
// abandons the wait, not the batch.
func (b *Batch) Wait(ctx context.Context) ([]BlockResult, error) {
	select {
	case <-b.done:
		return b.results, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Results returns the result slice. Valid only after Done is closed.
func (b *Batch) Results() []BlockResult {
	return b.results
}

// BytesRead returns the bytes read so far by this batch.
func (b *Batch) BytesRead() int64 {
	return b.bytesRead.Load()
}

// record stores the terminal outcome for one request slot. Each slot is
// written by exactly one worker; the closing of done publishes the writes
// to the waiter.
func (b *Batch) record(idx int, status Status, n int64, err error, buf []byte) {
	r := &b.results[idx]
	r.BytesRead = n
	r.Status = status
	r.Err = err
	r.Buf = buf

	if n > 0 {
		b.bytesRead.Add(n)
	}
	b.complete(1)
}

// skip resolves n requests that will never be dispatched. Their slots keep
// the prefilled StatusIncomplete.
func (b *Batch) skip(n int) {
	if n > 0 {
		b.complete(n)
	}
}

// complete decrements the outstanding count and finishes the batch when it
// reaches zero.
func (b *Batch) complete(n int) {
	if b.remaining.Add(-int64(n)) == 0 {
		b.finishOne.Do(b.finish)
	}
}

func (b *Batch) finish() {
	b.cancel()

	incomplete := 0
	failed := 0
	for i := range b.results {
		switch b.results[i].Status {
		case StatusIncomplete:
			incomplete++
		case StatusError:
			failed++
		}
	}

	b.engine.batchDone(b, incomplete, failed)

	logger.Info("batch complete",
		logger.KeyBatchID, b.ID,
		logger.KeyRequests, len(b.results),
		logger.KeySpans, b.spans,
		logger.KeyCoalesced, b.coalesced,
		logger.KeyBytes, b.bytesRead.Load(),
		"incomplete", incomplete,
		"failed", failed,
		logger.KeyDurationMs, logger.Duration(b.start),
	)

	close(b.done)
}
