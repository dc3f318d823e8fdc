package fdpool

import (
	"sync/atomic"
)

// Handle is a reference to a pooled descriptor. Handles are not safe for
// concurrent use, but many handles to the same file may read concurrently.
// Every handle must be released exactly once.
type Handle struct {
	pool     *Pool
	entry    *entry
	released atomic.Bool
}

// Path returns the file path this handle reads from.
func (h *Handle) Path() string {
	return h.entry.path
}

// ReadAt reads len(p) bytes from the file starting at byte offset off.
// It performs a single positioned read: the returned count may be short
// when the range extends past end of file, and is 0 at or beyond it.
// Unlike io.ReaderAt, a short read is not reported as an error.
func (h *Handle) ReadAt(p []byte, off int64) (int, error) {
	if h.released.Load() {
		panic("fdpool: read on released handle")
	}
	return h.entry.readAt(p, off)
}

// Advise hints the kernel about the access pattern for the byte range
// [off, off+length) of the file. A zero off and length covers the whole
// file. No-op where posix_fadvise is unavailable or advice is AdviceNone.
func (h *Handle) Advise(advice Advice, off, length int64) error {
	if h.released.Load() {
		panic("fdpool: advise on released handle")
	}
	if advice == AdviceNone {
		return nil
	}
	return h.entry.advise(advice, off, length)
}

// Size returns the current size of the file.
func (h *Handle) Size() (int64, error) {
	if h.released.Load() {
		panic("fdpool: stat on released handle")
	}
	info, err := h.entry.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Release returns the reference to the pool. Releasing twice panics.
func (h *Handle) Release() {
	if h.released.Swap(true) {
		panic("fdpool: handle released twice")
	}
	h.pool.release(h.entry)
}
