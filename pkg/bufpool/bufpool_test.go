package bufpool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// ============================================================================
// Buffer Allocation Tests
// ============================================================================

func TestBufferAllocation(t *testing.T) {
	t.Run("AllocatesPageBuffer", func(t *testing.T) {
		buf := Get(100)
		defer Put(buf)

		assert.Equal(t, 100, len(buf))
		assert.Equal(t, DefaultPageSize, cap(buf))
	})

	t.Run("AllocatesBlockBuffer", func(t *testing.T) {
		buf := Get(64 * 1024)
		defer Put(buf)

		assert.Equal(t, 64*1024, len(buf))
		assert.Equal(t, DefaultBlockSize, cap(buf))
	})

	t.Run("AllocatesSpanBuffer", func(t *testing.T) {
		buf := Get(512 * 1024)
		defer Put(buf)

		assert.Equal(t, 512*1024, len(buf))
		assert.Equal(t, DefaultSpanSize, cap(buf))
	})

	t.Run("AllocatesOversizedDirectly", func(t *testing.T) {
		buf := Get(4 * 1024 * 1024)
		defer Put(buf)

		assert.Equal(t, 4*1024*1024, len(buf))
		assert.Equal(t, len(buf), cap(buf))
	})

	t.Run("AllocatesZeroSizeBuffer", func(t *testing.T) {
		buf := Get(0)
		defer Put(buf)

		assert.NotNil(t, buf)
		assert.Equal(t, 0, len(buf))
		assert.Equal(t, DefaultPageSize, cap(buf))
	})

	t.Run("Get64MatchesGet", func(t *testing.T) {
		buf := Get64(int64(256 * 1024))
		defer Put(buf)

		assert.Equal(t, 256*1024, len(buf))
		assert.Equal(t, DefaultBlockSize, cap(buf))
	})
}

// ============================================================================
// Size Class Tests
// ============================================================================

func TestBufferSizeClasses(t *testing.T) {
	t.Run("ExactTierBoundaries", func(t *testing.T) {
		for _, size := range []int{DefaultPageSize, DefaultBlockSize, DefaultSpanSize} {
			buf := Get(size)
			assert.Equal(t, size, len(buf))
			assert.Equal(t, size, cap(buf))
			Put(buf)
		}
	})

	t.Run("JustAbovePageGetsBlock", func(t *testing.T) {
		buf := Get(DefaultPageSize + 1)
		defer Put(buf)

		assert.Equal(t, DefaultBlockSize, cap(buf))
	})

	t.Run("JustAboveBlockGetsSpan", func(t *testing.T) {
		buf := Get(DefaultBlockSize + 1)
		defer Put(buf)

		assert.Equal(t, DefaultSpanSize, cap(buf))
	})

	t.Run("JustAboveSpanIsDirect", func(t *testing.T) {
		buf := Get(DefaultSpanSize + 1)
		defer Put(buf)

		assert.Equal(t, DefaultSpanSize+1, cap(buf))
	})
}

// ============================================================================
// Put and Reuse Tests
// ============================================================================

func TestBufferPutAndReuse(t *testing.T) {
	t.Run("PutNilIsNoop", func(t *testing.T) {
		Put(nil)
	})

	t.Run("PutForeignCapacityIsNoop", func(t *testing.T) {
		// A slice whose capacity matches no tier must not poison the pool.
		Put(make([]byte, 777))

		buf := Get(100)
		defer Put(buf)
		assert.Equal(t, DefaultPageSize, cap(buf))
	})

	t.Run("ReturnedBufferHasFullLength", func(t *testing.T) {
		p := NewPool(nil)

		buf := p.Get(10)
		buf = buf[:3] // caller may reslice before returning
		p.Put(buf)

		again := p.Get(DefaultPageSize)
		assert.Equal(t, DefaultPageSize, len(again))
		p.Put(again)
	})
}

// ============================================================================
// Custom Configuration Tests
// ============================================================================

func TestCustomPoolConfig(t *testing.T) {
	t.Run("CustomTierSizes", func(t *testing.T) {
		p := NewPool(&Config{
			PageSize:  1 << 10,
			BlockSize: 128 << 10,
			SpanSize:  2 << 20,
		})

		buf := p.Get(100 * 1024)
		assert.Equal(t, 128<<10, cap(buf))
		p.Put(buf)
	})

	t.Run("ZeroFieldsFallBackToDefaults", func(t *testing.T) {
		p := NewPool(&Config{})

		buf := p.Get(100)
		assert.Equal(t, DefaultPageSize, cap(buf))
		p.Put(buf)
	})

	t.Run("NilConfigUsesDefaults", func(t *testing.T) {
		p := NewPool(nil)

		buf := p.Get(DefaultBlockSize)
		assert.Equal(t, DefaultBlockSize, cap(buf))
		p.Put(buf)
	})
}

// ============================================================================
// Concurrency Tests
// ============================================================================

func TestConcurrentGetPut(t *testing.T) {
	const goroutines = 16
	const iterations = 500

	p := NewPool(nil)
	sizes := []int{512, 4 << 10, 64 << 10, 256 << 10, 1 << 20}

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				size := sizes[(g+i)%len(sizes)]
				buf := p.Get(size)
				if len(buf) != size {
					t.Errorf("Get(%d) returned len %d", size, len(buf))
					return
				}
				buf[0] = byte(i)
				buf[len(buf)-1] = byte(g)
				p.Put(buf)
			}
		}(g)
	}
	wg.Wait()
}
