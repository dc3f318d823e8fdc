package warm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/blockwarm/internal/logger"
	"github.com/marmos91/blockwarm/internal/telemetry"
	"github.com/marmos91/blockwarm/pkg/bufpool"
	"github.com/marmos91/blockwarm/pkg/fdpool"
)

// DefaultMaxPending is the default cap on requests admitted but not yet
// terminal, across all batches. Submissions past it are rejected rather
// than queued, so a stalled disk surfaces as backpressure instead of
// unbounded memory growth.
const DefaultMaxPending = 1 << 20

// Config holds engine configuration. The per-batch knobs double as the
// defaults merged into each batch's Options.
type Config struct {
	// MaxConcurrency caps in-flight reads across all batches. Zero means
	// the available parallelism.
	MaxConcurrency int

	// MaxPerFile is the default per-file concurrency cap. Zero means 4.
	MaxPerFile int

	// CoalesceDistance is the default gap, in bytes, within which
	// same-file requests merge into one read. Zero disables coalescing.
	CoalesceDistance int64

	// Timeout is the default per-batch deadline. Zero means none.
	Timeout time.Duration

	// RetryPartial re-reads the remainder of short reads by default.
	RetryPartial bool

	// MaxRetries bounds RetryPartial re-reads. Zero means 3.
	MaxRetries int

	// Advise is the default posix_fadvise hint issued before each read.
	Advise fdpool.Advice

	// MaxPending caps admitted-but-unfinished requests across batches.
	// Zero means DefaultMaxPending.
	MaxPending int

	// Pool configures the engine-owned file handle pool.
	Pool fdpool.Config

	// Buffers supplies the scratch buffer pool for coalesced and
	// discard-mode reads. Nil means a pool with default tier sizes.
	Buffers *bufpool.Pool

	// Metrics receives engine events. Nil disables instrumentation.
	Metrics Metrics
}

// FileHandle is the descriptor surface a worker reads through for the
// duration of one span. The engine's own pool hands out fdpool handles;
// the indirection exists so reads can be served by any positioned-read
// implementation.
type FileHandle interface {
	// ReadAt performs one positioned read. Short and zero counts follow
	// the pread convention: nil error, fewer bytes past end of file.
	ReadAt(p []byte, off int64) (int, error)

	// Advise hints the kernel about the range's access pattern.
	Advise(advice fdpool.Advice, off, length int64) error

	// Release returns the handle to its pool. Must be called exactly once.
	Release()
}

// HandlePool resolves file paths to read handles.
type HandlePool interface {
	Acquire(ctx context.Context, path string) (FileHandle, error)
	Close() error
}

// fdPoolAdapter lifts *fdpool.Pool to the HandlePool interface.
type fdPoolAdapter struct {
	pool *fdpool.Pool
}

func (a fdPoolAdapter) Acquire(ctx context.Context, path string) (FileHandle, error) {
	h, err := a.pool.Acquire(ctx, path)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (a fdPoolAdapter) Close() error {
	return a.pool.Close()
}

// Engine is the block warming facade. It owns the file handle pool and
// the scratch buffers, bounds global read concurrency, and drives each
// submitted batch through scheduling, reading and aggregation.
//
// An Engine is safe for concurrent use. Batches submitted concurrently
// share the global in-flight cap but are otherwise independent.
type Engine struct {
	defaults   Options
	maxPending int64

	pool    HandlePool
	fds     *fdpool.Pool // set when the engine owns a real descriptor pool
	bufs    *bufpool.Pool
	metrics Metrics

	// sem bounds in-flight reads across all batches.
	sem chan struct{}

	inFlight  atomic.Int64
	pending   atomic.Int64
	batches   atomic.Int64
	requests  atomic.Int64
	bytesRead atomic.Int64
	coalesced atomic.Int64

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup // open batches
}

// New creates an engine with its own file handle pool. Close releases
// the pool and every descriptor it holds.
func New(cfg Config) (*Engine, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	if cfg.Pool.Metrics == nil {
		cfg.Pool.Metrics = poolMetricsFor(cfg.Metrics)
	}
	fds := fdpool.New(cfg.Pool)

	e := newEngine(cfg, fdPoolAdapter{pool: fds})
	e.fds = fds

	logger.Info("warm engine ready",
		"max_concurrency", e.defaults.MaxConcurrency,
		"max_per_file", e.defaults.MaxPerFile,
		"coalesce_distance", e.defaults.CoalesceDistance,
		"max_open_files", cfg.Pool.MaxOpen)
	return e, nil
}

// newEngine wires an engine around an existing handle pool. Tests use it
// to substitute fault-injecting pools.
func newEngine(cfg Config, pool HandlePool) *Engine {
	defaults := defaultOptions(cfg)

	bufs := cfg.Buffers
	if bufs == nil {
		bufs = bufpool.NewPool(nil)
	}

	maxPending := int64(cfg.MaxPending)
	if maxPending <= 0 {
		maxPending = DefaultMaxPending
	}

	return &Engine{
		defaults:   defaults,
		maxPending: maxPending,
		pool:       pool,
		bufs:       bufs,
		metrics:    cfg.Metrics,
		sem:        make(chan struct{}, defaults.MaxConcurrency),
	}
}

func validateConfig(cfg Config) error {
	switch {
	case cfg.MaxConcurrency < 0:
		return fmt.Errorf("warm: negative max concurrency %d", cfg.MaxConcurrency)
	case cfg.MaxPerFile < 0:
		return fmt.Errorf("warm: negative per-file concurrency %d", cfg.MaxPerFile)
	case cfg.CoalesceDistance < 0:
		return fmt.Errorf("warm: negative coalesce distance %d", cfg.CoalesceDistance)
	case cfg.MaxPending < 0:
		return fmt.Errorf("warm: negative pending cap %d", cfg.MaxPending)
	default:
		return nil
	}
}

// poolMetricsFor narrows the engine metrics to the fdpool hook, keeping
// the nil-disables-everything contract across the boundary.
func poolMetricsFor(m Metrics) fdpool.Metrics {
	if pm, ok := m.(fdpool.Metrics); ok {
		return pm
	}
	return nil
}

// Warm reads every requested block and returns one result per request,
// in submission order. It blocks until the batch is done: all requests
// terminal, or the batch deadline / ctx cancellation stopped dispatch
// and the in-flight reads finished. Requests never dispatched come back
// with StatusIncomplete; Warm does not return early without a result
// slot for every request.
func (e *Engine) Warm(ctx context.Context, reqs []BlockRequest, opts *Options) ([]BlockResult, error) {
	b, err := e.Submit(ctx, reqs, opts)
	if err != nil {
		return nil, err
	}
	<-b.Done()
	return b.Results(), nil
}

// Submit admits a batch and starts reading it in the background.
// The returned Batch reports completion through Done, Wait and Results.
//
// Submit rejects — with an error, never a partial result set — batches
// that are empty, contain a malformed request, arrive after Close, or
// would push the engine past its pending-request cap.
func (e *Engine) Submit(ctx context.Context, reqs []BlockRequest, opts *Options) (*Batch, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrInvalidRequest)
	}
	if opts != nil {
		if err := opts.validate(); err != nil {
			return nil, err
		}
	}
	for i := range reqs {
		if err := reqs[i].validate(); err != nil {
			return nil, fmt.Errorf("request %d: %w", i, err)
		}
	}

	// Admission: the closed check and the batch registration must be
	// atomic with respect to Close, or a batch could slip past wg.Wait.
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, ErrEngineClosed
	}
	if pending := e.pending.Add(int64(len(reqs))); pending > e.maxPending {
		e.pending.Add(-int64(len(reqs)))
		e.mu.RUnlock()
		return nil, fmt.Errorf("%w: %d in flight, cap %d",
			ErrTooManyRequests, pending-int64(len(reqs)), e.maxPending)
	}
	e.wg.Add(1)
	e.mu.RUnlock()

	merged := opts.withDefaults(e.defaults)
	b := e.newBatch(reqs, merged)

	spans := buildSpans(b.reqs, merged.CoalesceDistance)
	b.spans = len(spans)
	b.coalesced = len(b.reqs) - len(spans)

	bctx := e.batchContext(ctx, b, len(spans))

	e.batches.Add(1)
	e.requests.Add(int64(len(reqs)))
	e.coalesced.Add(int64(b.coalesced))
	if e.metrics != nil {
		e.metrics.SetPending(int(e.pending.Load()))
	}

	logger.InfoCtx(bctx, "batch submitted",
		logger.KeyRequests, len(reqs),
		logger.KeySpans, b.spans,
		logger.KeyCoalesced, b.coalesced)

	sched := newScheduler(spans, merged.MaxPerFile)

	workers := merged.MaxConcurrency
	if workers > len(spans) {
		workers = len(spans)
	}
	for i := 0; i < workers; i++ {
		go e.worker(bctx, b, sched, i)
	}

	// Deadline watcher: once the batch context ends, stop dispatch and
	// resolve every span that never reached a worker. In-flight reads
	// are left alone; their workers record results on completion.
	go func() {
		select {
		case <-bctx.Done():
			undispatched := sched.abort()
			skipped := 0
			for _, sp := range undispatched {
				skipped += len(sp.members)
			}
			if skipped > 0 {
				logger.WarnCtx(bctx, "batch stopped before full dispatch",
					"undispatched", skipped,
					logger.KeyError, bctx.Err().Error())
			}
			b.skip(skipped)
		case <-b.done:
		}
	}()

	return b, nil
}

// newBatch builds the batch bookkeeping: a copy of the requests, the
// prefilled result slots and the remaining counter.
func (e *Engine) newBatch(reqs []BlockRequest, opts Options) *Batch {
	b := &Batch{
		ID:      uuid.New().String(),
		engine:  e,
		opts:    opts,
		reqs:    append([]BlockRequest(nil), reqs...),
		results: make([]BlockResult, len(reqs)),
		done:    make(chan struct{}),
		start:   time.Now(),
	}
	b.remaining.Store(int64(len(reqs)))

	for i := range b.reqs {
		r := &b.reqs[i]
		b.results[i] = BlockResult{
			RequestID: uuid.New().String(),
			Index:     i,
			Path:      r.Path,
			Offset:    r.Offset,
			Length:    r.Length,
			Status:    StatusIncomplete,
		}
	}
	return b
}

// batchContext derives the context every worker of the batch runs
// under: deadline applied, trace span opened, log fields attached.
func (e *Engine) batchContext(ctx context.Context, b *Batch, spans int) context.Context {
	var bctx context.Context
	if b.opts.Timeout > 0 {
		bctx, b.cancel = context.WithTimeout(ctx, b.opts.Timeout)
	} else {
		bctx, b.cancel = context.WithCancel(ctx)
	}

	bctx, span := telemetry.StartSpan(bctx, telemetry.SpanBatch,
		trace.WithAttributes(
			telemetry.BatchID(b.ID),
			attribute.Int(telemetry.AttrRequests, len(b.reqs)),
			attribute.Int(telemetry.AttrSpans, spans),
			attribute.Int(telemetry.AttrCoalesced, b.coalesced),
		))
	b.traceSpan = span

	lc := logger.NewLogContext(b.ID)
	if telemetry.IsEnabled() {
		lc = lc.WithTrace(telemetry.TraceID(bctx), telemetry.SpanID(bctx))
	}
	return logger.WithContext(bctx, lc)
}

// batchDone settles engine-level accounting for a finished batch.
// Called exactly once per batch, before its done channel closes.
func (e *Engine) batchDone(b *Batch, incomplete, failed int) {
	e.bytesRead.Add(b.bytesRead.Load())
	e.pending.Add(-int64(len(b.reqs)))

	if e.metrics != nil {
		e.metrics.RecordBatch(len(b.reqs), b.spans, b.coalesced, time.Since(b.start).Seconds())
		e.metrics.SetPending(int(e.pending.Load()))
	}

	if b.traceSpan != nil {
		b.traceSpan.SetAttributes(
			attribute.Int64(telemetry.AttrBytesRead, b.bytesRead.Load()),
			attribute.Int(telemetry.AttrIncomplete, incomplete),
			attribute.Int(telemetry.AttrFailed, failed),
		)
		b.traceSpan.End()
	}

	e.wg.Done()
}

// Close stops accepting batches, waits for open batches to finish and
// closes the handle pool. In-flight reads run to completion; Close does
// not preempt them.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	e.closed = true
	e.mu.Unlock()

	e.wg.Wait()
	err := e.pool.Close()

	logger.Info("warm engine closed",
		logger.KeyRequests, e.requests.Load(),
		logger.KeyBytes, e.bytesRead.Load())
	return err
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Batches:   e.batches.Load(),
		Requests:  e.requests.Load(),
		BytesRead: e.bytesRead.Load(),
		Coalesced: e.coalesced.Load(),
		InFlight:  e.inFlight.Load(),
		Pending:   e.pending.Load(),
	}
}

// PoolStats returns the descriptor pool counters. Zero when the engine
// was wired to an external pool.
func (e *Engine) PoolStats() fdpool.Stats {
	if e.fds == nil {
		return fdpool.Stats{}
	}
	return e.fds.Stats()
}
