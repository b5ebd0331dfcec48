package jobsystem

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/go-foundations/jobsystem/placement"
)

// Scheduler is the top-level type spec.md §5/§6 describes: the owner of
// every worker, the recycle pool, the tag registry and the round-robin
// cursor. Field shape mirrors the teacher's WorkerPool[T,R] (config +
// metrics + a handful of synchronization primitives held directly on the
// struct rather than behind a manager type); lifecycle semantics mirror
// VgjsJobSystem's init/terminate/wait in VGJS.h.
type Scheduler struct {
	cfg   Config
	sink  Sink
	alloc Allocator

	workers []*worker
	wake    *wakeGroup
	tags    *tagRegistry
	recycle *queue
	rr      *placement.RoundRobin

	started     atomic.Bool
	terminated  atomic.Bool
	startOnce   sync.Once
	runningWG   sync.WaitGroup
	liveThreads atomic.Int32

	panicHandler func(recovered any)
}

// New constructs a Scheduler. sink and alloc may be nil, in which case a
// no-op Sink and the always-succeeds Allocator are used — matching the
// teacher's "NewWithConfig falls back to defaults for nil collaborators"
// pattern.
func New(cfg Config, sink Sink, alloc Allocator) *Scheduler {
	cfg = cfg.normalize()
	if sink == nil {
		sink = noopSink{}
	}
	if alloc == nil {
		alloc = NewDefaultAllocator()
	}
	return &Scheduler{
		cfg:     cfg,
		sink:    sink,
		alloc:   alloc,
		wake:    newWakeGroup(),
		tags:    newTagRegistry(),
		recycle: newQueue(cfg.RecyclePoolCapacity),
		rr:      placement.NewRoundRobin(),
	}
}

// SetPanicHandler overrides the default "re-panic and crash the process"
// policy spec.md §7 prescribes for a FunctionJob body that panics. Tests
// exercising the propagation path use this to observe the panic instead
// of taking down the test binary.
func (s *Scheduler) SetPanicHandler(h func(recovered any)) {
	s.panicHandler = h
}

// Start spawns the worker goroutines. Idempotent: the second and later
// calls are no-ops, matching VgjsJobSystem's atomic m_init_counter guard.
// Blocks until every worker has registered itself as live, mirroring the
// source's startup barrier.
func (s *Scheduler) Start() error {
	s.startOnce.Do(func() {
		n := s.cfg.NumWorkers
		s.workers = make([]*worker, n)
		ready := &sync.WaitGroup{}
		ready.Add(n)
		s.runningWG.Add(n)
		for i := 0; i < n; i++ {
			idx := s.cfg.StartIndex + ThreadIndex(i)
			w := newWorker(idx, i, s.cfg.QueueBufferSize, s)
			s.workers[i] = w
			go func(w *worker) {
				defer s.runningWG.Done()
				w.run(ready)
			}(w)
		}
		ready.Wait()
		s.started.Store(true)
	})
	return nil
}

// ThreadCount returns the number of worker goroutines.
func (s *Scheduler) ThreadCount() int {
	return len(s.workers)
}

// CurrentThreadIndex implements spec.md §6: returns the ThreadIndex
// executing on ctx and true, or (0, false) if ctx was never derived from
// a running unit's context (i.e. the caller is off-worker).
func (s *Scheduler) CurrentThreadIndex(ctx context.Context) (ThreadIndex, bool) {
	idx := currentThread(ctx)
	if idx == NoThread {
		return 0, false
	}
	return idx, true
}

// Schedule enqueues a FunctionJob body (spec.md §4.3). parent is inferred
// from ctx (nil when called off-worker, i.e. a root job). When tag is not
// NoTag the unit is parked instead of dispatched (spec.md §4.6) and
// Schedule returns (0, nil); childDelta is otherwise applied to the
// parent's counter, with values < 0 meaning "default to 1".
func (s *Scheduler) Schedule(ctx context.Context, fn func(context.Context), opts JobOptions, tag TagID, childDelta int32) (int, error) {
	if s.terminated.Load() {
		return 0, ErrShutdown
	}
	if fn == nil {
		return 0, ErrNoProcessor
	}
	u := s.acquireFunctionUnit(fn, ctx)
	opts.apply(u)

	if tag != NoTag {
		s.tags.park(u, tag)
		return 0, nil
	}

	parent := currentUnit(ctx)
	producer := currentThread(ctx)
	s.scheduleUnit(u, parent, childDelta, producer)
	return 1, nil
}

// ScheduleTag drains every unit parked under tag and dispatches them,
// per spec.md §4.6: the first unit drained carries the real child
// contribution (the queue's length at drain time, when a parent is
// present), every subsequent unit carries 0. Returns the number of units
// dispatched; 0 if nothing was ever parked under tag.
func (s *Scheduler) ScheduleTag(ctx context.Context, tag TagID) int {
	if tag == NoTag {
		return 0
	}
	q, ok := s.tags.drain(tag)
	if !ok {
		return 0
	}
	n := q.Len()
	if n == 0 {
		return 0
	}

	parent := currentUnit(ctx)
	producer := currentThread(ctx)

	count := 0
	for {
		u, ok := q.pop()
		if !ok {
			break
		}
		add := int32(0)
		if count == 0 {
			add = int32(n)
		}
		s.attachChild(u, parent, add, producer)
		count++
	}
	return count
}

// scheduleUnit is the completion-protocol entry point for a single,
// independently-requested child (spec.md §4.3): Schedule and
// ScheduleCoroutine's direct callers. childDelta < 0 means "default to
// 1" (the common case). childDelta == 0 is spec.md §8's boundary case —
// "must not touch the parent counter" — which this implements literally
// by detaching u from the parent/child graph entirely: since nothing
// incremented the parent's counter for u, nothing may decrement it
// either, or the counter would eventually underflow.
func (s *Scheduler) scheduleUnit(u *workUnit, parent *workUnit, childDelta int32, producer ThreadIndex) {
	d := childDelta
	if d < 0 {
		d = 1
	}
	if parent != nil && d != 0 {
		u.parent = parent
		parent.children.Add(uint32(d))
	} else {
		u.parent = nil
	}
	s.dispatchToQueue(u, producer)
}

// attachChild is the batching variant scheduleUnit's counterpart for
// Await/ScheduleTag fan-out (spec.md §4.4a/§4.6): every unit in a batch
// is attached to parent regardless of addAmount, because completion
// always decrements parent by exactly one per attached child — only the
// batch's one designated carrier performs the one-time bulk increment
// that balances out all of those decrements.
func (s *Scheduler) attachChild(u *workUnit, parent *workUnit, addAmount int32, producer ThreadIndex) {
	u.parent = parent
	if parent != nil && addAmount > 0 {
		parent.children.Add(uint32(addAmount))
	}
	s.dispatchToQueue(u, producer)
}

// dispatchToQueue implements spec.md §4.2's placement policy: a unit
// with an explicit target thread goes to that worker's local queue when
// the producing thread is the target itself, otherwise to the target's
// shared queue; an untargeted unit is round-robined onto some worker's
// shared queue.
func (s *Scheduler) dispatchToQueue(u *workUnit, producer ThreadIndex) {
	n := int32(len(s.workers))
	if n == 0 {
		return
	}
	if u.targetThread != NoThread {
		idx := normalizeWorkerIndex(int32(u.targetThread), n)
		if producer == u.targetThread {
			s.workers[idx].local.push(u)
		} else {
			s.workers[idx].shared.push(u)
		}
	} else {
		idx := s.rr.Place(placement.Any, int32(producer), n)
		s.workers[idx].shared.push(u)
	}
	s.wake.broadcast()
}

func normalizeWorkerIndex(idx, n int32) int32 {
	idx %= n
	if idx < 0 {
		idx += n
	}
	return idx
}

// rescheduleUnit re-dispatches a unit whose placement was already
// decided (a coroutine resuming after its awaited children finished, or
// migrating to a new thread via ResumeOn) without touching its parent or
// children counters.
func (s *Scheduler) rescheduleUnit(u *workUnit, producer ThreadIndex) {
	s.dispatchToQueue(u, producer)
}

// childFinished implements the completion-protocol propagation spec.md
// §4.3 describes: u has just lost one reason to stay alive (either it
// finished running itself, or one of its children did). If that drops
// u's count to zero, u is fully resolved: a FunctionJob propagates the
// same event to its own parent; a CoroutineJob is rescheduled so a
// worker can resume it past the await point whose children just
// finished.
func (s *Scheduler) childFinished(u *workUnit, producer ThreadIndex) {
	newVal := u.children.Add(^uint32(0))
	if newVal != 0 {
		return
	}
	if u.kind == kindFunction {
		if u.parent != nil {
			s.childFinished(u.parent, producer)
		}
		return
	}
	s.rescheduleUnit(u, producer)
}

// notifyParentOnCoroFinish is final_awaiter's propagation step (spec.md
// §4.5): a CoroutineJob's own body just reached its final suspension
// point. It never self-counted, so its completion is reported straight
// to its parent's counter; reaching zero there resolves the parent the
// same way childFinished would.
func (s *Scheduler) notifyParentOnCoroFinish(parent *workUnit, producer ThreadIndex) {
	newVal := parent.children.Add(^uint32(0))
	if newVal != 0 {
		return
	}
	if parent.kind == kindCoroutine {
		s.rescheduleUnit(parent, producer)
		return
	}
	s.childFinished(parent, producer)
}

// acquireFunctionUnit pops a spare node from the recycle pool or
// allocates a fresh one, mirroring the teacher's recycle-pool reuse
// (spec.md §3).
func (s *Scheduler) acquireFunctionUnit(fn func(context.Context), baseCtx context.Context) *workUnit {
	if u, ok := s.recycle.pop(); ok {
		u.resetForFunction(fn, baseCtx)
		return u
	}
	u := &workUnit{}
	u.resetForFunction(fn, baseCtx)
	return u
}

// releaseFunctionUnit returns a finished FunctionJob's node to the
// recycle pool. Capacity rejection (ErrCapacityRejected, internal-only)
// just means the node is dropped for the garbage collector instead.
func (s *Scheduler) releaseFunctionUnit(u *workUnit) {
	u.run = nil
	u.baseCtx = nil
	u.parent = nil
	s.recycle.push(u)
}

// onPanic applies the configured panic policy for a FunctionJob body
// that panicked. The default re-panics, crashing the process, matching
// spec.md §7's "these terminate the process" propagation policy.
func (s *Scheduler) onPanic(r any) {
	if s.panicHandler != nil {
		s.panicHandler(r)
		return
	}
	panic(r)
}

// Terminate requests shutdown. Idempotent. Workers already mid-execution
// finish their current unit; anything still queued is abandoned (not
// run) and torn down by the following Wait call. Does not block — call
// Wait to join.
func (s *Scheduler) Terminate() {
	if !s.terminated.CompareAndSwap(false, true) {
		return
	}
	s.wake.broadcast()
}

// Wait blocks until every worker goroutine has exited, then tears down
// every queue (local, shared, tag-parked, recycle) so no CoroutineJob
// frame is left dangling — spec.md I6.
func (s *Scheduler) Wait() {
	s.runningWG.Wait()
	for _, w := range s.workers {
		w.local.drainDestroy()
		w.shared.drainDestroy()
	}
	s.tags.drainAllDestroy()
	s.recycle.drainDestroy()
}
