package jobsystem

import (
	"sync"
	"time"
)

// worker owns one dispatch-loop goroutine, its own local (single-
// producer-when-targeted) queue and a shared (multi-producer) queue
// peers can steal from. Grounded on the teacher's workStealingWorker
// loop and VgjsJobSystem::task in VGJS.h: try local, then shared, then
// every peer's shared queue in ascending order, then sleep until woken
// or the idle timeout elapses.
type worker struct {
	index  ThreadIndex // public identity, offset by Config.StartIndex
	slot   int         // position within Scheduler.workers, always 0-based
	local  *queue
	shared *queue
	sched  *Scheduler
}

func newWorker(index ThreadIndex, slot int, bufSize int, sched *Scheduler) *worker {
	return &worker{
		index:  index,
		slot:   slot,
		local:  newQueue(bufSize),
		shared: newQueue(bufSize),
		sched:  sched,
	}
}

// run is the dispatch loop. ready.Done is called once, after the worker
// has registered itself as live, to satisfy the Scheduler's startup
// barrier.
func (w *worker) run(ready *sync.WaitGroup) {
	w.sched.liveThreads.Add(1)
	ready.Done()
	defer w.sched.liveThreads.Add(-1)

	for !w.sched.terminated.Load() {
		if w.tryRunOne() {
			continue
		}
		w.sched.wake.wait(w.sched.cfg.IdleSleep)
	}
}

// tryRunOne attempts to find and execute exactly one unit, in the order
// spec.md §4.2 fixes: local, shared, then every peer's shared queue
// starting immediately after this worker's own slot, ascending,
// wrapping around.
func (w *worker) tryRunOne() bool {
	if u, ok := w.local.pop(); ok {
		w.execute(u)
		return true
	}
	if u, ok := w.shared.pop(); ok {
		w.execute(u)
		return true
	}
	n := len(w.sched.workers)
	for i := 1; i < n; i++ {
		peer := w.sched.workers[(w.slot+i)%n]
		if u, ok := peer.shared.pop(); ok {
			w.execute(u)
			return true
		}
	}
	return false
}

func (w *worker) execute(u *workUnit) {
	if ps, ok := w.sched.sink.(*PromSink); ok {
		ps.trackStart()
		defer ps.trackEnd()
	}

	start := time.Now()
	var finished bool
	switch u.kind {
	case kindFunction:
		finished = w.runFunction(u)
	case kindCoroutine:
		u.coro.resume(w.index)
		finished = u.coro.destroyed()
	}

	w.sched.sink.Record(ExecutionRecord{
		Start:    start,
		End:      time.Now(),
		Worker:   w.index,
		Type:     u.typeTag,
		ID:       u.id,
		Finished: finished,
	})
}

// runFunction runs u's body to completion (or panic), applies the
// completion protocol, and returns the unit to the recycle pool.
func (w *worker) runFunction(u *workUnit) (finished bool) {
	finished = true
	func() {
		defer func() {
			if r := recover(); r != nil {
				finished = false
				w.sched.onPanic(r)
			}
		}()
		ctx := withCurrent(u.baseCtx, u, w.index)
		u.run(ctx)
	}()

	w.sched.childFinished(u, w.index)
	w.sched.releaseFunctionUnit(u)
	return finished
}
