package warm

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/blockwarm/pkg/fdpool"
)

func TestStatusString(t *testing.T) {
	assert.Equal(t, "incomplete", StatusIncomplete.String())
	assert.Equal(t, "complete", StatusComplete.String())
	assert.Equal(t, "partial", StatusPartial.String())
	assert.Equal(t, "eof", StatusEOF.String())
	assert.Equal(t, "error", StatusError.String())
	assert.Equal(t, "status(42)", Status(42).String())
}

func TestStatusZeroValueIsIncomplete(t *testing.T) {
	var res BlockResult
	assert.Equal(t, StatusIncomplete, res.Status)
	assert.False(t, res.Status.Terminal())
	assert.True(t, StatusComplete.Terminal())
	assert.True(t, StatusError.Terminal())
}

func TestErrorWrapping(t *testing.T) {
	t.Run("OpenError", func(t *testing.T) {
		cause := errors.New("permission denied")
		err := &OpenError{Path: "/data/a.bin", Err: cause}

		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "/data/a.bin")
		assert.Contains(t, err.Error(), "permission denied")
	})

	t.Run("IOError", func(t *testing.T) {
		cause := errors.New("input/output error")
		err := &IOError{Path: "/data/a.bin", Offset: 262144, Err: cause}

		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "/data/a.bin")
		assert.Contains(t, err.Error(), "262144")
	})
}

func TestRequestValidate(t *testing.T) {
	valid := BlockRequest{Path: "/a", Offset: 0, Length: 10}
	require.NoError(t, valid.validate())

	withBuf := BlockRequest{Path: "/a", Offset: 0, Length: 10, Buf: make([]byte, 10)}
	require.NoError(t, withBuf.validate())

	for name, req := range map[string]BlockRequest{
		"EmptyPath":      {Path: "", Length: 10},
		"NegativeOffset": {Path: "/a", Offset: -1, Length: 10},
		"ZeroLength":     {Path: "/a", Length: 0},
		"ShortBuffer":    {Path: "/a", Length: 10, Buf: make([]byte, 4)},
	} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, req.validate(), ErrInvalidRequest)
		})
	}
}

func TestOptionsWithDefaults(t *testing.T) {
	defaults := Options{
		MaxConcurrency:   8,
		MaxPerFile:       4,
		CoalesceDistance: 4096,
		Timeout:          time.Minute,
		MaxRetries:       3,
	}

	t.Run("NilTakesAllDefaults", func(t *testing.T) {
		var opts *Options
		assert.Equal(t, defaults, opts.withDefaults(defaults))
	})

	t.Run("ZeroFieldsFallBack", func(t *testing.T) {
		merged := (&Options{MaxPerFile: 2}).withDefaults(defaults)
		assert.Equal(t, 2, merged.MaxPerFile)
		assert.Equal(t, 8, merged.MaxConcurrency)
		assert.Equal(t, int64(4096), merged.CoalesceDistance)
		assert.Equal(t, time.Minute, merged.Timeout)
	})

	t.Run("SetFieldsOverride", func(t *testing.T) {
		merged := (&Options{
			MaxConcurrency:   2,
			CoalesceDistance: 1,
			Timeout:          time.Second,
			RetryPartial:     true,
			DiscardData:      true,
			Advise:           fdpool.AdviceSequential,
		}).withDefaults(defaults)

		assert.Equal(t, 2, merged.MaxConcurrency)
		assert.Equal(t, int64(1), merged.CoalesceDistance)
		assert.Equal(t, time.Second, merged.Timeout)
		assert.True(t, merged.RetryPartial)
		assert.True(t, merged.DiscardData)
		assert.Equal(t, fdpool.AdviceSequential, merged.Advise)
	})
}

func TestDefaultOptionsFromConfig(t *testing.T) {
	opts := defaultOptions(Config{})
	assert.Greater(t, opts.MaxConcurrency, 0, "zero concurrency must fall back to available parallelism")
	assert.Equal(t, DefaultMaxPerFile, opts.MaxPerFile)
	assert.Equal(t, DefaultMaxRetries, opts.MaxRetries)
	assert.Equal(t, int64(0), opts.CoalesceDistance, "coalescing stays off unless configured")
}

func TestMemberOutcome(t *testing.T) {
	tests := []struct {
		name    string
		off     int64
		length  int64
		covered int64
		wantN   int64
		want    Status
	}{
		{"FullyCovered", 0, 100, 100, 100, StatusComplete},
		{"CoveredPastEnd", 0, 100, 250, 100, StatusComplete},
		{"PartiallyCovered", 0, 100, 40, 40, StatusPartial},
		{"CoverageEndsAtOffset", 100, 50, 100, 0, StatusEOF},
		{"CoverageShortOfOffset", 100, 50, 30, 0, StatusEOF},
		{"MidSpanMember", 4096, 4096, 6000, 1904, StatusPartial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, status := memberOutcome(tt.off, tt.length, tt.covered)
			assert.Equal(t, tt.wantN, n)
			assert.Equal(t, tt.want, status)
		})
	}
}
