// Package bufpool provides a tiered buffer pool for efficient memory reuse.
//
// The warming engine reads block-sized ranges at high concurrency, and most
// of those reads are scratch: discard-mode requests only exist to pull pages
// into the OS cache, and coalesced spans read a wide range that is copied out
// to per-request buffers immediately. Pooling the scratch slices keeps a
// saturated run from allocating one buffer per read.
//
// # Size Classes
//
// The pool uses three tiers aligned with the engine's common read sizes:
//   - Page buffers (default 4KiB): single-page probes and tiny tail blocks
//   - Block buffers (default 256KiB): the default planning block size
//   - Span buffers (default 1MiB): coalesced multi-block reads
//
// Requests above the span tier are allocated directly and never pooled, so
// an occasional huge coalesced read does not pin its buffer forever.
//
// # Thread Safety
//
// All operations are safe for concurrent use; tiers are built on sync.Pool.
//
// # Usage
//
//	buf := bufpool.Get(size)
//	defer bufpool.Put(buf)
//	// ... use buf ...
package bufpool

import (
	"sync"
)

// Default buffer size classes.
// These can be overridden when creating a custom pool with NewPool.
const (
	// DefaultPageSize covers single-page reads (4KiB)
	DefaultPageSize = 4 << 10

	// DefaultBlockSize matches the default planning block size (256KiB)
	DefaultBlockSize = 256 << 10

	// DefaultSpanSize covers typical coalesced spans (1MiB)
	DefaultSpanSize = 1 << 20
)

// Pool manages byte slice pools organized by size class. Get selects the
// smallest tier that fits and falls back to direct allocation above the
// span tier.
type Pool struct {
	page      sync.Pool
	block     sync.Pool
	span      sync.Pool
	pageSize  int
	blockSize int
	spanSize  int
}

// Config holds configuration for creating a custom buffer pool.
type Config struct {
	// PageSize is the size of the smallest tier (default: 4KiB)
	PageSize int

	// BlockSize is the size of the middle tier (default: 256KiB)
	BlockSize int

	// SpanSize is the size of the largest pooled tier (default: 1MiB)
	SpanSize int
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		PageSize:  DefaultPageSize,
		BlockSize: DefaultBlockSize,
		SpanSize:  DefaultSpanSize,
	}
}

// NewPool creates a new buffer pool with the given configuration.
// If cfg is nil, default values are used.
func NewPool(cfg *Config) *Pool {
	if cfg == nil {
		defaultCfg := DefaultConfig()
		cfg = &defaultCfg
	}

	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = DefaultBlockSize
	}
	if cfg.SpanSize <= 0 {
		cfg.SpanSize = DefaultSpanSize
	}

	p := &Pool{
		pageSize:  cfg.PageSize,
		blockSize: cfg.BlockSize,
		spanSize:  cfg.SpanSize,
	}

	p.page = sync.Pool{
		New: func() any {
			buf := make([]byte, p.pageSize)
			return &buf
		},
	}
	p.block = sync.Pool{
		New: func() any {
			buf := make([]byte, p.blockSize)
			return &buf
		},
	}
	p.span = sync.Pool{
		New: func() any {
			buf := make([]byte, p.spanSize)
			return &buf
		},
	}

	return p
}

// Get returns a byte slice of length size. The slice is backed by a pooled
// buffer whose capacity may exceed size.
//
// The caller must return the buffer with Put when done. Sizes above the span
// tier are allocated directly and will not be pooled.
func (p *Pool) Get(size int) []byte {
	var bufPtr *[]byte

	switch {
	case size <= p.pageSize:
		bufPtr = p.page.Get().(*[]byte)
	case size <= p.blockSize:
		bufPtr = p.block.Get().(*[]byte)
	case size <= p.spanSize:
		bufPtr = p.span.Get().(*[]byte)
	default:
		return make([]byte, size)
	}

	buf := *bufPtr
	return buf[:size]
}

// Get64 is a convenience wrapper for the int64 lengths used by block
// requests. Callers must ensure the size fits in an int.
func (p *Pool) Get64(size int64) []byte {
	return p.Get(int(size))
}

// Put returns a buffer to the pool for reuse. The buffer must have been
// obtained from Get and must not be used after Put.
//
// Buffers whose capacity does not match a tier (oversized direct
// allocations, resliced fragments) are left for the GC.
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}

	switch cap(buf) {
	case p.pageSize:
		fullBuf := buf[:cap(buf)]
		p.page.Put(&fullBuf)
	case p.blockSize:
		fullBuf := buf[:cap(buf)]
		p.block.Put(&fullBuf)
	case p.spanSize:
		fullBuf := buf[:cap(buf)]
		p.span.Put(&fullBuf)
	default:
		return
	}
}

// =============================================================================
// Global Pool
// =============================================================================

// globalPool is the package-level buffer pool with default configuration.
var globalPool = NewPool(nil)

// Get returns a byte slice of length size from the global pool.
//
// Usage:
//
//	buf := bufpool.Get(size)
//	defer bufpool.Put(buf)
func Get(size int) []byte {
	return globalPool.Get(size)
}

// Get64 returns a byte slice from the global pool using an int64 size.
func Get64(size int64) []byte {
	return globalPool.Get64(size)
}

// Put returns a buffer to the global pool.
// Always pair this with Get using defer so buffers make it back.
func Put(buf []byte) {
	globalPool.Put(buf)
}
