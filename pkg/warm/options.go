package warm

import (
	"fmt"
	"runtime"
	"time"

	"github.com/marmos91/blockwarm/pkg/fdpool"
)

// Default option values.
const (
	DefaultMaxPerFile = 4
	DefaultMaxRetries = 3
)

// Options tune how one batch is scheduled and read. Zero fields fall back
// to the engine's defaults. A nil *Options means all defaults.
type Options struct {
	// MaxConcurrency caps the in-flight reads for this batch. Defaults to
	// the engine's MaxConcurrency (itself defaulting to the available
	// parallelism). The engine-wide cap still applies across batches.
	MaxConcurrency int

	// MaxPerFile caps concurrent reads against a single file, so one hot
	// file cannot monopolize the storage queue. Default 4.
	MaxPerFile int

	// CoalesceDistance merges requests against the same file whose gap is
	// at most this many bytes into one read. 0 disables coalescing.
	CoalesceDistance int64

	// Timeout bounds the whole batch. Once it expires no further requests
	// are dispatched; in-flight reads finish and are recorded, the rest
	// stay StatusIncomplete. 0 means no deadline.
	Timeout time.Duration

	// RetryPartial re-reads the remainder of a short (but not end-of-file)
	// read up to MaxRetries times and reports the merged outcome. When
	// false (default) short reads are reported as-is.
	RetryPartial bool

	// MaxRetries bounds RetryPartial re-reads. Default 3.
	MaxRetries int

	// DiscardData reads into recycled scratch buffers and returns results
	// without buffers. This is the page-cache warming mode: the bytes only
	// need to be pulled in, not kept.
	DiscardData bool

	// Advise issues a posix_fadvise hint for each read's range before
	// reading it. AdviceNone (default) issues nothing.
	Advise fdpool.Advice
}

// withDefaults merges zero fields with the engine defaults.
func (o *Options) withDefaults(defaults Options) Options {
	merged := defaults
	if o == nil {
		return merged
	}
	if o.MaxConcurrency > 0 {
		merged.MaxConcurrency = o.MaxConcurrency
	}
	if o.MaxPerFile > 0 {
		merged.MaxPerFile = o.MaxPerFile
	}
	if o.CoalesceDistance > 0 {
		merged.CoalesceDistance = o.CoalesceDistance
	}
	if o.Timeout > 0 {
		merged.Timeout = o.Timeout
	}
	if o.RetryPartial {
		merged.RetryPartial = true
	}
	if o.MaxRetries > 0 {
		merged.MaxRetries = o.MaxRetries
	}
	if o.DiscardData {
		merged.DiscardData = true
	}
	if o.Advise != fdpool.AdviceNone {
		merged.Advise = o.Advise
	}
	return merged
}

// validate rejects option combinations the engine cannot honor.
func (o *Options) validate() error {
	if o.MaxConcurrency < 0 {
		return fmt.Errorf("%w: negative max concurrency", ErrInvalidRequest)
	}
	if o.MaxPerFile < 0 {
		return fmt.Errorf("%w: negative per-file concurrency", ErrInvalidRequest)
	}
	if o.CoalesceDistance < 0 {
		return fmt.Errorf("%w: negative coalesce distance", ErrInvalidRequest)
	}
	return nil
}

// defaultOptions derives the engine-level defaults from its config.
func defaultOptions(cfg Config) Options {
	opts := Options{
		MaxConcurrency:   cfg.MaxConcurrency,
		MaxPerFile:       cfg.MaxPerFile,
		CoalesceDistance: cfg.CoalesceDistance,
		Timeout:          cfg.Timeout,
		RetryPartial:     cfg.RetryPartial,
		MaxRetries:       cfg.MaxRetries,
		Advise:           cfg.Advise,
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = runtime.GOMAXPROCS(0)
	}
	if opts.MaxPerFile <= 0 {
		opts.MaxPerFile = DefaultMaxPerFile
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	return opts
}
