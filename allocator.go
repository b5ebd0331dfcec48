package jobsystem

// Allocator is the injectable collaborator spec.md §4.5/§5 delegates
// coroutine frame allocation to. It is out of scope for the core per
// spec.md §1 ("the memory pool implementation used for coroutine frame
// allocation (the core consumes it through an allocator interface)"),
// but the core must define the interface shape and a usable default.
//
// Alloc returns ok=false when the pool is exhausted and the caller has
// configured no fallback — ScheduleCoroutine turns that into
// ErrAllocationFailure without ever running the coroutine body, per
// spec.md §7.
type Allocator interface {
	Alloc() (frame any, ok bool)
	Free(frame any)
}

// defaultAllocator is a trivial always-succeeds allocator: Go's garbage
// collector reclaims coroutine goroutine state, so "allocation" here
// only exists to give the interface a concrete default and a seam for
// callers to plug in a bounded pool allocator (e.g. the teacher's
// recycle-pool idea, generalized to coroutine frames) without touching
// scheduler internals.
type defaultAllocator struct{}

func (defaultAllocator) Alloc() (any, bool) { return struct{}{}, true }
func (defaultAllocator) Free(any)           {}

// NewDefaultAllocator returns the always-succeeds Allocator used when a
// Scheduler is constructed without one.
func NewDefaultAllocator() Allocator { return defaultAllocator{} }

// poolAllocator is a bounded allocator generalizing the teacher's
// recycle-pool idea (m_recycle_jobs in the source) from FunctionJob
// reuse to arbitrary coroutine frame tokens: Alloc hands out a token
// from a fixed-capacity channel-backed pool; once the pool is drained,
// Alloc reports failure rather than growing unboundedly, exercising the
// AllocationFailure path described in spec.md §7.
type poolAllocator struct {
	tokens chan struct{}
}

// NewBoundedAllocator returns an Allocator that can satisfy at most
// capacity concurrent coroutine frames before reporting allocation
// failure — useful for testing the AllocationFailure path deterministically.
func NewBoundedAllocator(capacity int) Allocator {
	if capacity <= 0 {
		capacity = 1
	}
	p := &poolAllocator{tokens: make(chan struct{}, capacity)}
	for i := 0; i < capacity; i++ {
		p.tokens <- struct{}{}
	}
	return p
}

func (p *poolAllocator) Alloc() (any, bool) {
	select {
	case tok := <-p.tokens:
		return tok, true
	default:
		return nil, false
	}
}

func (p *poolAllocator) Free(frame any) {
	tok, ok := frame.(struct{})
	if !ok {
		return
	}
	select {
	case p.tokens <- tok:
	default:
	}
}
