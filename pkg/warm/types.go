// Package warm implements the block warming engine: it accepts batches of
// (path, offset, length) block requests and reads them from local storage
// as fast as possible, either to pre-populate the OS page cache or to fill
// caller-supplied buffers.
//
// A batch moves through three stages. The scheduler partitions requests by
// file, orders them by ascending offset and optionally coalesces close
// neighbors into single reads. A bounded pool of workers executes the reads
// through a shared descriptor pool. The aggregator records one result per
// request and releases the batch once every request has a terminal status.
//
// Callers use the Engine facade:
//
//	eng, err := warm.New(warm.Config{})
//	results, err := eng.Warm(ctx, requests, nil)
package warm

import (
	"errors"
	"fmt"
)

// Status classifies the outcome of one block request.
//
// The zero value is StatusIncomplete so result slots that were never
// reached by a worker (batch cancelled or timed out first) report
// themselves correctly without extra bookkeeping.
type Status int

const (
	// StatusIncomplete marks a request that was never dispatched before
	// the batch was cancelled or timed out. Not an engine failure.
	StatusIncomplete Status = iota

	// StatusComplete means exactly the requested bytes were read.
	StatusComplete

	// StatusPartial means fewer bytes than requested were read, because
	// the range crossed end of file or the device returned short.
	StatusPartial

	// StatusEOF means the offset was at or beyond end of file and zero
	// bytes were read.
	StatusEOF

	// StatusError means the read failed. The result's Err field holds an
	// *OpenError or *IOError describing the failure.
	StatusError
)

// String returns the lowercase name of the status.
func (s Status) String() string {
	switch s {
	case StatusIncomplete:
		return "incomplete"
	case StatusComplete:
		return "complete"
	case StatusPartial:
		return "partial"
	case StatusEOF:
		return "eof"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether the status is a worker-produced outcome.
func (s Status) Terminal() bool {
	return s != StatusIncomplete
}

var (
	// ErrEngineClosed is returned by Submit and Warm after Close.
	ErrEngineClosed = errors.New("warm: engine closed")

	// ErrInvalidRequest is wrapped by submission errors describing a
	// malformed block request.
	ErrInvalidRequest = errors.New("warm: invalid request")

	// ErrTooManyRequests is returned when admitting a batch would exceed
	// the engine's pending-request cap.
	ErrTooManyRequests = errors.New("warm: too many pending requests")
)

// OpenError reports a failure to open a file: missing path, denied
// permission or descriptor exhaustion. It fails only the requests that
// needed that file.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("warm: open %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// IOError reports a device-level read fault at a specific position.
type IOError struct {
	Path   string
	Offset int64
	Err    error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("warm: read %s at %d: %v", e.Path, e.Offset, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// BlockRequest describes one unit of work: read Length bytes of the file
// at Path starting at Offset. Immutable once submitted.
type BlockRequest struct {
	// Path of the file to read.
	Path string

	// Offset is the non-negative byte position the read starts at.
	Offset int64

	// Length is the positive number of bytes to read.
	Length int64

	// Priority orders dispatch: higher priorities are read first, ties
	// dispatch in submission order.
	Priority int

	// Buf optionally supplies the destination buffer. It must hold at
	// least Length bytes. When nil the engine allocates (or, in discard
	// mode, recycles scratch and returns no buffer).
	Buf []byte
}

// validate returns a descriptive error when the request is malformed.
func (r *BlockRequest) validate() error {
	switch {
	case r.Path == "":
		return fmt.Errorf("%w: empty path", ErrInvalidRequest)
	case r.Offset < 0:
		return fmt.Errorf("%w: negative offset %d for %s", ErrInvalidRequest, r.Offset, r.Path)
	case r.Length <= 0:
		return fmt.Errorf("%w: non-positive length %d for %s", ErrInvalidRequest, r.Length, r.Path)
	case r.Buf != nil && int64(len(r.Buf)) < r.Length:
		return fmt.Errorf("%w: buffer of %d bytes for %d byte read of %s",
			ErrInvalidRequest, len(r.Buf), r.Length, r.Path)
	default:
		return nil
	}
}

// BlockResult is the terminal outcome of one BlockRequest. Exactly one
// result exists per submitted request, at the same index the request was
// submitted at.
type BlockResult struct {
	// RequestID is the engine-assigned identifier for this request.
	RequestID string

	// Index is the request's position in the submitted batch.
	Index int

	// Path, Offset and Length echo the request.
	Path   string
	Offset int64
	Length int64

	// BytesRead is the number of bytes actually read into the buffer.
	BytesRead int64

	// Status classifies the outcome.
	Status Status

	// Err is set when Status is StatusError.
	Err error

	// Buf holds the bytes read: the caller's slice when one was supplied,
	// an engine-allocated slice otherwise, or nil in discard mode. It is
	// truncated to BytesRead.
	Buf []byte
}

// Stats is a snapshot of engine counters.
type Stats struct {
	Batches   int64 // batches submitted
	Requests  int64 // block requests submitted
	BytesRead int64 // total bytes read
	Coalesced int64 // requests merged into a neighboring read
	InFlight  int64 // reads currently executing
	Pending   int64 // requests admitted but not yet terminal
}
