package warm

import (
	"container/heap"
	"sort"
	"sync"
)

// span is one physical read: a contiguous range of a file covering one or
// more block requests. The scheduler dispatches spans, not requests.
type span struct {
	path   string
	off    int64
	length int64

	// members are indexes into the batch's request slice, in ascending
	// offset order.
	members []int

	// priority is the highest priority among members, so a merged span is
	// never delayed below its most urgent member.
	priority int

	// seq is the lowest member index. Ties within a priority class
	// dispatch in submission order, which keeps scheduling deterministic.
	seq int
}

// end returns the first byte past the span.
func (sp *span) end() int64 {
	return sp.off + sp.length
}

// buildSpans partitions requests by path, sorts each file's requests by
// ascending offset and merges neighbors whose gap is at most distance
// bytes. distance 0 disables merging entirely.
func buildSpans(reqs []BlockRequest, distance int64) []*span {
	byPath := make(map[string][]int)
	var pathOrder []string
	for i := range reqs {
		path := reqs[i].Path
		if _, seen := byPath[path]; !seen {
			pathOrder = append(pathOrder, path)
		}
		byPath[path] = append(byPath[path], i)
	}

	var spans []*span
	for _, path := range pathOrder {
		idxs := byPath[path]
		sort.SliceStable(idxs, func(a, b int) bool {
			return reqs[idxs[a]].Offset < reqs[idxs[b]].Offset
		})

		var cur *span
		for _, i := range idxs {
			r := &reqs[i]
			if cur != nil && distance > 0 && r.Offset-cur.end() <= distance {
				// Merge. Overlapping ranges have a negative gap and merge
				// whenever coalescing is on.
				if end := r.Offset + r.Length; end > cur.end() {
					cur.length = end - cur.off
				}
				cur.members = append(cur.members, i)
				if r.Priority > cur.priority {
					cur.priority = r.Priority
				}
				if i < cur.seq {
					cur.seq = i
				}
				continue
			}
			cur = &span{
				path:     path,
				off:      r.Offset,
				length:   r.Length,
				members:  []int{i},
				priority: r.Priority,
				seq:      i,
			}
			spans = append(spans, cur)
		}
	}
	return spans
}

// spanHeap orders spans by priority (higher first), then by submission
// order (lower seq first).
type spanHeap []*span

func (h spanHeap) Len() int { return len(h) }

func (h spanHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h spanHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *spanHeap) Push(x any) { *h = append(*h, x.(*span)) }

func (h *spanHeap) Pop() any {
	old := *h
	n := len(old)
	sp := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return sp
}

// scheduler hands spans to workers in priority order while holding the
// per-file concurrency cap. Spans whose file is at the cap are parked in a
// per-file queue and rejoin the heap when a read on that file finishes.
//
// Workers call next until it reports no more work, and must pair every
// received span with a finish call.
type scheduler struct {
	mu       sync.Mutex
	cond     *sync.Cond
	ready    spanHeap
	parked   map[string][]*span
	inflight map[string]int
	perFile  int
	pending  int // spans not yet handed to a worker
	aborted  bool
}

func newScheduler(spans []*span, perFile int) *scheduler {
	s := &scheduler{
		ready:    append(spanHeap(nil), spans...),
		parked:   make(map[string][]*span),
		inflight: make(map[string]int),
		perFile:  perFile,
		pending:  len(spans),
	}
	s.cond = sync.NewCond(&s.mu)
	heap.Init(&s.ready)
	return s
}

// next blocks until a span is dispatchable and returns it, or returns
// false when every span has been handed out or the batch was aborted.
func (s *scheduler) next() (*span, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if s.aborted || s.pending == 0 {
			return nil, false
		}

		for s.ready.Len() > 0 {
			sp := heap.Pop(&s.ready).(*span)
			if s.perFile > 0 && s.inflight[sp.path] >= s.perFile {
				// File at cap. Park in pop order, which is already
				// priority order, and try the next span.
				s.parked[sp.path] = append(s.parked[sp.path], sp)
				continue
			}
			s.inflight[sp.path]++
			s.pending--
			return sp, true
		}

		// Everything left is parked behind per-file caps or already
		// running. A finish or abort wakes us.
		s.cond.Wait()
	}
}

// finish releases the span's per-file slot and promotes the oldest parked
// span for that file, if any.
func (s *scheduler) finish(sp *span) {
	s.mu.Lock()
	if n := s.inflight[sp.path] - 1; n > 0 {
		s.inflight[sp.path] = n
	} else {
		delete(s.inflight, sp.path)
	}
	if q := s.parked[sp.path]; len(q) > 0 {
		promoted := q[0]
		if len(q) == 1 {
			delete(s.parked, sp.path)
		} else {
			s.parked[sp.path] = q[1:]
		}
		heap.Push(&s.ready, promoted)
	}
	s.cond.Broadcast()
	s.mu.Unlock()
}

// abort stops dispatch and returns every span that was never handed to a
// worker, so the batch can mark their requests incomplete. In-flight spans
// are unaffected; their reads finish and record normally.
func (s *scheduler) abort() []*span {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.aborted {
		return nil
	}
	s.aborted = true

	undispatched := make([]*span, 0, s.pending)
	undispatched = append(undispatched, s.ready...)
	for _, q := range s.parked {
		undispatched = append(undispatched, q...)
	}
	s.ready = nil
	s.parked = make(map[string][]*span)
	s.pending = 0

	s.cond.Broadcast()
	return undispatched
}
