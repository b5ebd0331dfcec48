package jobsystem

import "sync"

// unbounded marks a Queue with no capacity ceiling (worker local/shared
// queues use this — spec.md §4.1 "capacity rejection is the backpressure
// mechanism for the recycle pool only").
const unbounded = 0

// queue is a bounded, internally synchronized, intrusive FIFO of
// *workUnit (spec.md §4.1). It owns the units it currently holds and is
// responsible for destroying them during scheduler teardown.
type queue struct {
	mu    sync.Mutex
	first *workUnit
	last  *workUnit
	size  int
	limit int // unbounded (0) means no ceiling
}

func newQueue(limit int) *queue {
	return &queue{limit: limit}
}

// push appends to the tail. Returns false without modifying the queue
// when the queue is at capacity — the only backpressure signal this
// type produces.
func (q *queue) push(u *workUnit) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.limit != unbounded && q.size >= q.limit {
		return false
	}

	u.next = nil
	if q.last != nil {
		q.last.next = u
	} else {
		q.first = u
	}
	q.last = u
	q.size++
	return true
}

// pop removes and returns the head, or (nil, false) if empty.
func (q *queue) pop() (*workUnit, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.first == nil {
		return nil, false
	}
	u := q.first
	q.first = u.next
	if q.first == nil {
		q.last = nil
	}
	u.next = nil
	q.size--
	return u, true
}

// Len reports the current count under lock.
func (q *queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// drainDestroy pops every unit and applies the variant-specific destroy
// policy (spec.md §9 "honoring the destroy policy of each variant"),
// used during scheduler teardown to guarantee I6: no queue retains
// undestroyed units once terminate() returns.
func (q *queue) drainDestroy() {
	for {
		u, ok := q.pop()
		if !ok {
			return
		}
		destroyUnit(u)
	}
}

// destroyUnit applies each variant's destroy policy. FunctionJobs simply
// become eligible for garbage collection (there is no OS-level free in
// Go); CoroutineJobs must tear down their backing goroutine/frame.
func destroyUnit(u *workUnit) {
	if u.kind == kindCoroutine && u.coro != nil {
		u.coro.forceDestroy()
	}
}
