// Package fdpool manages a pool of open read-only file descriptors.
//
// The warming engine issues positioned reads against the same files from
// many goroutines at once. Opening a descriptor per read would thrash the
// dentry cache and burn syscalls, so the pool keeps one shared descriptor
// per path and hands out reference-counted handles:
//
//	h, err := pool.Acquire(ctx, "/data/model.bin")
//	if err != nil { ... }
//	defer h.Release()
//	n, err := h.ReadAt(buf, offset)
//
// Positioned reads do not touch the file cursor, so a single descriptor is
// safe to share across goroutines. The pool serializes only the open:
// concurrent Acquire calls for a path not yet open wait for the first
// caller's open to finish instead of opening duplicates.
//
// Idle descriptors (reference count zero) are closed by a background
// sweeper after IdleTTL. A descriptor is never closed while handles
// reference it.
package fdpool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/blockwarm/internal/logger"
)

var (
	// ErrPoolClosed is returned by Acquire after Close has been called.
	ErrPoolClosed = errors.New("fdpool: pool closed")

	// ErrTooManyOpen is returned by Acquire when the pool is at MaxOpen
	// and no idle descriptor can be evicted to make room.
	ErrTooManyOpen = errors.New("fdpool: too many open files")
)

// Default configuration values.
const (
	DefaultMaxOpen       = 256
	DefaultIdleTTL       = 60 * time.Second
	DefaultSweepInterval = 15 * time.Second
)

// Config holds pool configuration.
type Config struct {
	// MaxOpen caps the number of simultaneously open descriptors.
	// Zero or negative means DefaultMaxOpen.
	MaxOpen int

	// IdleTTL is how long an unreferenced descriptor may stay open
	// before the sweeper closes it.
	IdleTTL time.Duration

	// SweepInterval is how often the sweeper scans for idle descriptors.
	SweepInterval time.Duration

	// DirectIO opens files with O_DIRECT on Linux, bypassing the page
	// cache. Offsets, lengths and buffers must then respect the
	// filesystem's alignment requirements; block-aligned plans satisfy
	// this. Ignored on platforms without O_DIRECT.
	DirectIO bool

	// Metrics receives pool events. Nil disables instrumentation.
	Metrics Metrics
}

// Metrics is the instrumentation hook consumed by the pool.
// Implementations must be safe for concurrent use. A nil Metrics in
// Config disables all recording.
type Metrics interface {
	// RecordOpen is called after a descriptor is opened.
	RecordOpen()
	// RecordHit is called when Acquire reuses an open descriptor.
	RecordHit()
	// RecordEviction is called with the number of descriptors closed
	// by eviction or sweeping.
	RecordEviction(n int)
	// SetOpenFiles is called with the current number of open entries.
	SetOpenFiles(n int)
}

// ApplyDefaults fills zero fields with default values.
func (c *Config) ApplyDefaults() {
	if c.MaxOpen <= 0 {
		c.MaxOpen = DefaultMaxOpen
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = DefaultIdleTTL
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	cfg := Config{}
	cfg.ApplyDefaults()
	return cfg
}

// Stats is a point-in-time snapshot of pool counters.
type Stats struct {
	Open        int   // descriptors currently open
	Opens       int64 // total successful opens
	Hits        int64 // acquires served by an already-open descriptor
	Evictions   int64 // descriptors closed by sweep or capacity eviction
	FailedOpens int64 // opens that returned an error
}

// entry is the per-path pool slot. The pool lock guards the entries map;
// entry.mu guards the fields below it. Lock order is pool.mu before
// entry.mu, never the reverse.
type entry struct {
	path    string
	opening chan struct{} // closed once the open attempt finished

	mu             sync.Mutex
	file           *os.File
	fd             int
	refs           int
	lastUsed       time.Time
	openErr        error
	closeOnRelease bool
}

// Pool is a reference-counted pool of open read-only descriptors.
type Pool struct {
	cfg Config

	mu      sync.Mutex
	cond    *sync.Cond
	entries map[string]*entry
	closed  bool

	opens       atomic.Int64
	hits        atomic.Int64
	evictions   atomic.Int64
	failedOpens atomic.Int64

	stopSweep chan struct{}
	sweepDone chan struct{}
}

// New creates a pool and starts its idle sweeper.
func New(cfg Config) *Pool {
	cfg.ApplyDefaults()

	p := &Pool{
		cfg:       cfg,
		entries:   make(map[string]*entry),
		stopSweep: make(chan struct{}),
		sweepDone: make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)

	go p.sweepLoop()

	return p
}

// Acquire returns a handle for the file at path, opening it if necessary.
// Concurrent acquires of a path being opened wait for that open instead of
// opening a second descriptor. The caller must Release the handle.
func (p *Pool) Acquire(ctx context.Context, path string) (*Handle, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}

		e, ok := p.entries[path]
		if !ok {
			return p.openEntry(path)
		}

		e.mu.Lock()
		switch {
		case e.file != nil:
			// Open descriptor, claim a reference.
			e.refs++
			e.lastUsed = time.Now()
			e.mu.Unlock()
			p.mu.Unlock()
			p.hits.Add(1)
			if p.cfg.Metrics != nil {
				p.cfg.Metrics.RecordHit()
			}
			return &Handle{pool: p, entry: e}, nil

		case e.openErr != nil:
			// Failed open still visible in the map; the opener removes
			// it. Report the same error to this waiter.
			err := e.openErr
			e.mu.Unlock()
			p.mu.Unlock()
			return nil, err

		default:
			// Open in progress. Wait for the broadcast, then retry.
			opening := e.opening
			e.mu.Unlock()
			p.mu.Unlock()
			select {
			case <-opening:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
}

// openEntry inserts a new entry for path and performs the open.
// Called with p.mu held; returns with it released.
func (p *Pool) openEntry(path string) (*Handle, error) {
	if len(p.entries) >= p.cfg.MaxOpen {
		if p.evictIdleLocked(len(p.entries)-p.cfg.MaxOpen+1) == 0 {
			p.mu.Unlock()
			return nil, fmt.Errorf("%w: %d descriptors in use", ErrTooManyOpen, p.cfg.MaxOpen)
		}
	}

	e := &entry{
		path:    path,
		opening: make(chan struct{}),
		refs:    1, // claimed by the opener, keeps the sweeper away
	}
	p.entries[path] = e
	p.mu.Unlock()

	// The open syscall runs outside both locks so a slow open (network
	// filesystem, cold metadata) does not stall unrelated acquires.
	f, err := os.OpenFile(path, openFlags(p.cfg.DirectIO), 0)

	e.mu.Lock()
	if err != nil {
		e.openErr = err
		e.refs = 0
	} else {
		e.file = f
		e.fd = int(f.Fd())
		e.lastUsed = time.Now()
	}
	close(e.opening)
	e.mu.Unlock()

	if err != nil {
		p.failedOpens.Add(1)
		p.removeEntry(e)
		return nil, err
	}

	p.opens.Add(1)
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.RecordOpen()
		p.cfg.Metrics.SetOpenFiles(p.openCount())
	}
	logger.Debug("opened descriptor", logger.KeyPath, path, logger.KeyDirect, p.cfg.DirectIO)
	return &Handle{pool: p, entry: e}, nil
}

// release drops one reference. When the pool is draining and the last
// reference goes away, the descriptor is closed.
func (p *Pool) release(e *entry) {
	e.mu.Lock()
	if e.refs <= 0 {
		e.mu.Unlock()
		panic("fdpool: release of handle with no references")
	}
	e.refs--
	e.lastUsed = time.Now()
	drained := e.refs == 0 && e.closeOnRelease
	e.mu.Unlock()

	if drained {
		p.removeEntry(e)
	}
}

// removeEntry takes the entry out of the map and closes its descriptor,
// provided no references remain. Safe to call when the entry may already
// have been removed.
func (p *Pool) removeEntry(e *entry) {
	p.mu.Lock()
	e.mu.Lock()
	if p.entries[e.path] == e && e.refs == 0 {
		delete(p.entries, e.path)
		if e.file != nil {
			e.file.Close()
			e.file = nil
		}
		p.cond.Broadcast()
	}
	e.mu.Unlock()
	p.mu.Unlock()
}

// evictIdleLocked closes up to n idle descriptors, oldest first.
// Called with p.mu held. Returns the number evicted.
func (p *Pool) evictIdleLocked(n int) int {
	type victim struct {
		e        *entry
		lastUsed time.Time
	}

	var idle []victim
	for _, e := range p.entries {
		e.mu.Lock()
		if e.refs == 0 && e.file != nil {
			idle = append(idle, victim{e, e.lastUsed})
		}
		e.mu.Unlock()
	}

	sort.Slice(idle, func(i, j int) bool {
		return idle[i].lastUsed.Before(idle[j].lastUsed)
	})

	evicted := 0
	for _, v := range idle {
		if evicted >= n {
			break
		}
		v.e.mu.Lock()
		// Recheck: a reference may have appeared between snapshot and now.
		if v.e.refs == 0 && v.e.file != nil {
			v.e.file.Close()
			v.e.file = nil
			delete(p.entries, v.e.path)
			evicted++
		}
		v.e.mu.Unlock()
	}

	if evicted > 0 {
		p.evictions.Add(int64(evicted))
		if p.cfg.Metrics != nil {
			p.cfg.Metrics.RecordEviction(evicted)
			p.cfg.Metrics.SetOpenFiles(len(p.entries))
		}
		p.cond.Broadcast()
	}
	return evicted
}

// sweepLoop periodically closes descriptors idle longer than IdleTTL.
func (p *Pool) sweepLoop() {
	defer close(p.sweepDone)

	ticker := time.NewTicker(p.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.sweep(time.Now())
		case <-p.stopSweep:
			return
		}
	}
}

// sweep closes every idle descriptor whose lastUsed is older than IdleTTL.
func (p *Pool) sweep(now time.Time) {
	var victims []*entry

	p.mu.Lock()
	for path, e := range p.entries {
		e.mu.Lock()
		if e.refs == 0 && e.file != nil && now.Sub(e.lastUsed) >= p.cfg.IdleTTL {
			delete(p.entries, path)
			victims = append(victims, e)
		}
		e.mu.Unlock()
	}
	open := len(p.entries)
	if len(victims) > 0 {
		p.cond.Broadcast()
	}
	p.mu.Unlock()

	if len(victims) == 0 {
		return
	}

	for _, e := range victims {
		e.mu.Lock()
		e.file.Close()
		e.file = nil
		e.mu.Unlock()
	}

	p.evictions.Add(int64(len(victims)))
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.RecordEviction(len(victims))
		p.cfg.Metrics.SetOpenFiles(open)
	}
	logger.Debug("swept idle descriptors", logger.KeyEvicted, len(victims), logger.KeyOpenFiles, open)
}

// Close stops the sweeper, rejects further acquires and closes all
// descriptors. Descriptors still referenced are closed as their last
// handles are released; Close blocks until then.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.closed = true
	close(p.stopSweep)

	for path, e := range p.entries {
		e.mu.Lock()
		if e.refs == 0 {
			if e.file != nil {
				e.file.Close()
				e.file = nil
			}
			delete(p.entries, path)
		} else {
			e.closeOnRelease = true
		}
		e.mu.Unlock()
	}

	for len(p.entries) > 0 {
		p.cond.Wait()
	}
	p.mu.Unlock()

	<-p.sweepDone
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.SetOpenFiles(0)
	}
	return nil
}

// openCount returns the number of entries under the pool lock.
func (p *Pool) openCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Open:        p.openCount(),
		Opens:       p.opens.Load(),
		Hits:        p.hits.Load(),
		Evictions:   p.evictions.Load(),
		FailedOpens: p.failedOpens.Load(),
	}
}
