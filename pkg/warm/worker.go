package warm

import (
	"context"
	"time"

	"github.com/marmos91/blockwarm/internal/logger"
	"github.com/marmos91/blockwarm/pkg/fdpool"
)

// worker pulls spans from the scheduler until dispatch ends. Every span
// received is resolved exactly once: recorded with terminal results or
// skipped back to incomplete when cancellation won the race.
func (e *Engine) worker(ctx context.Context, b *Batch, sched *scheduler, id int) {
	for {
		sp, ok := sched.next()
		if !ok {
			return
		}
		e.processSpan(ctx, b, sp, id)
		sched.finish(sp)
	}
}

// processSpan executes one physical read and records results for every
// member request.
func (e *Engine) processSpan(ctx context.Context, b *Batch, sp *span, workerID int) {
	if ctx.Err() != nil {
		b.skip(len(sp.members))
		return
	}

	// Engine-wide read slot. Batches share this cap.
	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		b.skip(len(sp.members))
		return
	}
	defer func() { <-e.sem }()

	inFlight := e.inFlight.Add(1)
	if e.metrics != nil {
		e.metrics.SetInFlight(int(inFlight))
	}
	defer func() {
		left := e.inFlight.Add(-1)
		if e.metrics != nil {
			e.metrics.SetInFlight(int(left))
		}
	}()

	h, err := e.pool.Acquire(ctx, sp.path)
	if err != nil {
		if ctx.Err() != nil {
			// Cancellation beat the open; these requests were never read.
			b.skip(len(sp.members))
			return
		}
		openErr := &OpenError{Path: sp.path, Err: err}
		for _, m := range sp.members {
			b.record(m, StatusError, 0, openErr, nil)
		}
		logger.WarnCtx(ctx, "open failed",
			logger.KeyPath, sp.path,
			logger.KeyWorker, workerID,
			logger.KeyError, err.Error())
		if e.metrics != nil {
			e.metrics.RecordRead(StatusError.String(), 0, 0)
		}
		return
	}
	defer h.Release()

	if b.opts.Advise != fdpool.AdviceNone {
		if aerr := h.Advise(b.opts.Advise, sp.off, sp.length); aerr != nil {
			// Hints are best effort; the read proceeds regardless.
			logger.DebugCtx(ctx, "fadvise failed",
				logger.KeyPath, sp.path,
				logger.KeyAdvise, b.opts.Advise.String(),
				logger.KeyError, aerr.Error())
		}
	}

	start := time.Now()
	if len(sp.members) == 1 {
		e.readSingle(ctx, b, sp, h, start)
	} else {
		e.readMerged(ctx, b, sp, h, start)
	}
}

// readSingle serves a span covering exactly one request, reading straight
// into the destination buffer so no copy is needed.
func (e *Engine) readSingle(ctx context.Context, b *Batch, sp *span, h FileHandle, start time.Time) {
	m := sp.members[0]
	req := &b.reqs[m]

	var dest, scratch []byte
	switch {
	case req.Buf != nil:
		dest = req.Buf[:req.Length]
	case b.opts.DiscardData:
		scratch = e.bufs.Get64(req.Length)
		dest = scratch
	default:
		dest = make([]byte, req.Length)
	}

	n, err := e.readSpan(ctx, h, sp, dest, b.opts)
	if scratch != nil {
		e.bufs.Put(scratch)
	}

	if err != nil {
		ioErr := &IOError{Path: sp.path, Offset: sp.off, Err: err}
		b.record(m, StatusError, 0, ioErr, nil)
		e.finishRead(ctx, sp, StatusError, 0, start)
		return
	}

	_, status := memberOutcome(req.Offset, req.Length, sp.off+n)
	var buf []byte
	if scratch == nil {
		buf = dest[:n]
	}
	b.record(m, status, n, nil, buf)
	e.finishRead(ctx, sp, status, n, start)
}

// readMerged serves a coalesced span: one read into scratch covering the
// union, then each member receives exactly the bytes its own offset and
// length describe.
func (e *Engine) readMerged(ctx context.Context, b *Batch, sp *span, h FileHandle, start time.Time) {
	scratch := e.bufs.Get64(sp.length)
	defer e.bufs.Put(scratch)

	n, err := e.readSpan(ctx, h, sp, scratch, b.opts)
	if err != nil {
		ioErr := &IOError{Path: sp.path, Offset: sp.off, Err: err}
		for _, m := range sp.members {
			b.record(m, StatusError, 0, ioErr, nil)
		}
		e.finishRead(ctx, sp, StatusError, 0, start)
		return
	}

	covered := sp.off + n
	for _, m := range sp.members {
		req := &b.reqs[m]
		mn, status := memberOutcome(req.Offset, req.Length, covered)

		var buf []byte
		if mn > 0 && (req.Buf != nil || !b.opts.DiscardData) {
			src := scratch[req.Offset-sp.off : req.Offset-sp.off+mn]
			if req.Buf != nil {
				buf = req.Buf[:mn]
			} else {
				buf = make([]byte, mn)
			}
			copy(buf, src)
		}
		b.record(m, status, mn, nil, buf)
	}

	status := StatusComplete
	switch {
	case n == 0:
		status = StatusEOF
	case n < sp.length:
		status = StatusPartial
	}
	e.finishRead(ctx, sp, status, n, start)
}

// readSpan performs the positioned read for a span. With RetryPartial it
// re-reads the remaining range after a short read until the span fills,
// end of file is confirmed by a zero-byte read, or retries are exhausted.
// The accumulated count is returned either way.
func (e *Engine) readSpan(ctx context.Context, h FileHandle, sp *span, dest []byte, opts Options) (int64, error) {
	var total int64
	retries := 0
	for {
		n, err := h.ReadAt(dest[total:sp.length], sp.off+total)
		total += int64(n)
		if err != nil {
			return total, err
		}
		if total >= sp.length || n == 0 {
			return total, nil
		}
		if !opts.RetryPartial || retries >= opts.MaxRetries {
			return total, nil
		}
		retries++
		logger.DebugCtx(ctx, "retrying short read",
			logger.KeyPath, sp.path,
			logger.KeyOffset, sp.off+total,
			logger.KeyAttempt, retries,
			logger.KeyMaxRetries, opts.MaxRetries)
	}
}

// finishRead emits per-read telemetry once a span is resolved.
func (e *Engine) finishRead(ctx context.Context, sp *span, status Status, n int64, start time.Time) {
	if e.metrics != nil {
		e.metrics.RecordRead(status.String(), n, time.Since(start).Seconds())
	}
	logger.DebugCtx(ctx, "span read",
		logger.KeyPath, sp.path,
		logger.KeyOffset, sp.off,
		logger.KeyLength, sp.length,
		logger.KeyBytesRead, n,
		logger.KeyStatus, status.String(),
		logger.KeyDurationMs, logger.Duration(start))
}

// memberOutcome derives one request's byte count and status from the
// absolute end of valid bytes produced by its span's read.
func memberOutcome(off, length, covered int64) (int64, Status) {
	if covered <= off {
		return 0, StatusEOF
	}
	n := covered - off
	if n >= length {
		return length, StatusComplete
	}
	return n, StatusPartial
}
