package warm

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Span Building Tests
// ============================================================================

func TestBuildSpans(t *testing.T) {
	t.Run("AdjacentRequestsMerge", func(t *testing.T) {
		reqs := []BlockRequest{
			{Path: "a", Offset: 0, Length: 4096},
			{Path: "a", Offset: 4096, Length: 4096},
			{Path: "a", Offset: 8192, Length: 4096},
		}

		spans := buildSpans(reqs, 1)
		require.Len(t, spans, 1)
		assert.Equal(t, int64(0), spans[0].off)
		assert.Equal(t, int64(12288), spans[0].length)
		assert.Equal(t, []int{0, 1, 2}, spans[0].members)
	})

	t.Run("GapWithinDistanceMerges", func(t *testing.T) {
		reqs := []BlockRequest{
			{Path: "a", Offset: 0, Length: 100},
			{Path: "a", Offset: 150, Length: 100},
		}

		spans := buildSpans(reqs, 64)
		require.Len(t, spans, 1)
		assert.Equal(t, int64(250), spans[0].length, "span must cover the gap")
	})

	t.Run("GapPastDistanceSplits", func(t *testing.T) {
		reqs := []BlockRequest{
			{Path: "a", Offset: 0, Length: 100},
			{Path: "a", Offset: 165, Length: 100},
		}

		spans := buildSpans(reqs, 64)
		require.Len(t, spans, 2)
	})

	t.Run("ZeroDistanceDisablesMerging", func(t *testing.T) {
		reqs := []BlockRequest{
			{Path: "a", Offset: 0, Length: 4096},
			{Path: "a", Offset: 4096, Length: 4096},
		}

		spans := buildSpans(reqs, 0)
		require.Len(t, spans, 2)
	})

	t.Run("OverlappingRequestsMerge", func(t *testing.T) {
		reqs := []BlockRequest{
			{Path: "a", Offset: 0, Length: 200},
			{Path: "a", Offset: 100, Length: 50},
			{Path: "a", Offset: 100, Length: 300},
		}

		spans := buildSpans(reqs, 1)
		require.Len(t, spans, 1)
		assert.Equal(t, int64(0), spans[0].off)
		assert.Equal(t, int64(400), spans[0].length, "contained request must not shrink the span")
	})

	t.Run("DifferentFilesNeverMerge", func(t *testing.T) {
		reqs := []BlockRequest{
			{Path: "a", Offset: 0, Length: 4096},
			{Path: "b", Offset: 4096, Length: 4096},
		}

		spans := buildSpans(reqs, 1 << 20)
		require.Len(t, spans, 2)
	})

	t.Run("UnsortedOffsetsStillMerge", func(t *testing.T) {
		reqs := []BlockRequest{
			{Path: "a", Offset: 8192, Length: 4096},
			{Path: "a", Offset: 0, Length: 4096},
			{Path: "a", Offset: 4096, Length: 4096},
		}

		spans := buildSpans(reqs, 1)
		require.Len(t, spans, 1)
		assert.Equal(t, []int{1, 2, 0}, spans[0].members, "members must be in ascending offset order")
	})

	t.Run("SpanTakesHighestMemberPriority", func(t *testing.T) {
		reqs := []BlockRequest{
			{Path: "a", Offset: 0, Length: 100, Priority: 1},
			{Path: "a", Offset: 100, Length: 100, Priority: 7},
			{Path: "a", Offset: 200, Length: 100, Priority: 3},
		}

		spans := buildSpans(reqs, 1)
		require.Len(t, spans, 1)
		assert.Equal(t, 7, spans[0].priority)
	})

	t.Run("SpanTakesLowestMemberIndex", func(t *testing.T) {
		reqs := []BlockRequest{
			{Path: "a", Offset: 4096, Length: 100},
			{Path: "a", Offset: 0, Length: 100},
		}

		spans := buildSpans(reqs, 8192)
		require.Len(t, spans, 1)
		assert.Equal(t, 0, spans[0].seq)
	})
}

// ============================================================================
// Dispatch Order Tests
// ============================================================================

func TestSpanHeapOrder(t *testing.T) {
	reqs := []BlockRequest{
		{Path: "a", Offset: 0, Length: 1, Priority: 0},
		{Path: "b", Offset: 0, Length: 1, Priority: 5},
		{Path: "c", Offset: 0, Length: 1, Priority: 5},
		{Path: "d", Offset: 0, Length: 1, Priority: 9},
	}
	sched := newScheduler(buildSpans(reqs, 0), 1)

	var order []string
	for {
		sp, ok := sched.next()
		if !ok {
			break
		}
		order = append(order, sp.path)
		sched.finish(sp)
	}

	assert.Equal(t, []string{"d", "b", "c", "a"},
		order, "dispatch must be priority first, then submission order")
}

func TestSchedulerPerFileCap(t *testing.T) {
	t.Run("ParksAtCapAndPromotesOnFinish", func(t *testing.T) {
		reqs := []BlockRequest{
			{Path: "a", Offset: 0, Length: 1},
			{Path: "a", Offset: 100, Length: 1},
			{Path: "b", Offset: 0, Length: 1},
		}
		sched := newScheduler(buildSpans(reqs, 0), 1)

		first, ok := sched.next()
		require.True(t, ok)
		assert.Equal(t, "a", first.path)

		// File a is at its cap, so the next dispatch must skip to b.
		second, ok := sched.next()
		require.True(t, ok)
		assert.Equal(t, "b", second.path)

		// Finishing the first read frees the slot for the parked span.
		done := make(chan *span, 1)
		go func() {
			sp, ok := sched.next()
			assert.True(t, ok)
			done <- sp
		}()
		sched.finish(first)

		third := <-done
		require.NotNil(t, third)
		assert.Equal(t, "a", third.path)
		assert.Equal(t, int64(100), third.off)

		sched.finish(second)
		sched.finish(third)

		_, ok = sched.next()
		assert.False(t, ok)
	})

	t.Run("ZeroCapMeansUnlimited", func(t *testing.T) {
		reqs := []BlockRequest{
			{Path: "a", Offset: 0, Length: 1},
			{Path: "a", Offset: 100, Length: 1},
			{Path: "a", Offset: 200, Length: 1},
		}
		sched := newScheduler(buildSpans(reqs, 0), 0)

		for i := 0; i < 3; i++ {
			_, ok := sched.next()
			require.True(t, ok, "span %d must dispatch without waiting", i)
		}
	})
}

func TestSchedulerAbort(t *testing.T) {
	t.Run("ReturnsUndispatchedSpans", func(t *testing.T) {
		reqs := []BlockRequest{
			{Path: "a", Offset: 0, Length: 1},
			{Path: "a", Offset: 100, Length: 1},
			{Path: "b", Offset: 0, Length: 1},
		}
		sched := newScheduler(buildSpans(reqs, 0), 1)

		_, ok := sched.next()
		require.True(t, ok)

		undispatched := sched.abort()
		assert.Len(t, undispatched, 2, "abort must surface ready and parked spans")

		_, ok = sched.next()
		assert.False(t, ok, "dispatch must stop after abort")
	})

	t.Run("WakesBlockedWorkers", func(t *testing.T) {
		reqs := []BlockRequest{
			{Path: "a", Offset: 0, Length: 1},
			{Path: "a", Offset: 100, Length: 1},
		}
		sched := newScheduler(buildSpans(reqs, 0), 1)

		_, ok := sched.next()
		require.True(t, ok)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Blocks: the only remaining span is parked behind the cap.
			_, ok := sched.next()
			assert.False(t, ok)
		}()

		sched.abort()
		wg.Wait()
	})

	t.Run("SecondAbortIsEmpty", func(t *testing.T) {
		reqs := []BlockRequest{
			{Path: "a", Offset: 0, Length: 1},
		}
		sched := newScheduler(buildSpans(reqs, 0), 1)

		first := sched.abort()
		assert.Len(t, first, 1)
		assert.Empty(t, sched.abort())
	})
}
