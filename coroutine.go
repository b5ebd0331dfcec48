package jobsystem

import (
	"context"
	"sync/atomic"
)

// coroState tracks where a CoroutineJob sits in its own lifecycle.
// Spec.md §4.4/§4.5 describes these as suspension points on a single
// coroutine_handle; Go has no language-level coroutine, so each state
// transition here corresponds to one of the source's
// initial_suspend/await_suspend/final_suspend moments.
type coroState int32

const (
	coroPending        coroState = iota // created, never resumed
	coroRunning                         // body executing, a worker is blocked in resume()
	coroSuspended                       // yielded at an Await point
	coroFinalSuspended                  // body returned; parent is a coroutine retaining the handle
	coroDestroyed                       // frame torn down; Get() is safe, nothing else is
)

// Coro is both the handle a CoroutineJob body uses to await other work
// and the handle a caller holds to read its eventual result — spec.md
// doesn't distinguish the two roles, and neither does this type: a
// coroutine awaiting its own child coroutine ends up holding exactly the
// same kind of object its own caller holds for it.
//
// Modeled as a goroutine paired with two single-slot (buffer of one)
// channels (see SPEC_FULL.md "GO-NATIVE COROUTINE MODEL"): resumeCh hands control to
// the body, yieldCh hands it back to whichever worker drove the call.
// Exactly one of each fires per resume/suspend cycle, which is what
// keeps "at most one worker runs this coroutine at a time" (I2) true
// without an explicit lock on the frame itself.
type Coro[T any] struct {
	unit  *workUnit
	sched *Scheduler

	resumeCh chan struct{}
	yieldCh  chan struct{}
	abortCh  chan struct{}
	doneCh   chan struct{}

	state         atomic.Int32
	currentThread atomic.Int32

	result T
	err    error

	baseCtx context.Context
}

// CoroHandle is the caller-facing name for the same type a running
// coroutine receives; spec.md's reader-facing vocabulary distinguishes
// them even though the implementation does not need to.
type CoroHandle[T any] = Coro[T]

// newCoroFrame allocates a frame via the Scheduler's Allocator and spawns
// the coroutine's dedicated goroutine, which blocks immediately on its
// first resume (initial_suspend is always suspend_always, per VGJS.h's
// VgjsCoroPromiseBase). Returns ok=false without spawning anything when
// the Allocator is exhausted.
func newCoroFrame[T any](s *Scheduler, body func(*Coro[T]) (T, error), baseCtx context.Context) (*Coro[T], bool) {
	frame, ok := s.alloc.Alloc()
	if !ok {
		return nil, false
	}

	c := &Coro[T]{
		sched:    s,
		resumeCh: make(chan struct{}, 1),
		yieldCh:  make(chan struct{}, 1),
		abortCh:  make(chan struct{}),
		doneCh:   make(chan struct{}),
		baseCtx:  baseCtx,
	}
	c.unit = newCoroutineUnit(c)

	go func() {
		defer s.alloc.Free(frame)
		select {
		case <-c.resumeCh:
		case <-c.abortCh:
			var zero T
			c.result = zero
			c.err = ErrShutdown
			c.state.Store(int32(coroDestroyed))
			close(c.doneCh)
			return
		}
		result, err := body(c)
		c.finishBody(result, err)
	}()

	return c, true
}

// ScheduleCoroutine schedules body as a new CoroutineJob (spec.md §4.4).
// parent is inferred from ctx; scheduling a coroutine from within a
// currently-executing FunctionJob is a MisuseViolation (spec.md §7) —
// functions may only schedule more functions, never coroutines, since a
// function has no suspension point to park its own continuation on.
// Returns ErrAllocationFailure, without ever invoking body, when the
// configured Allocator cannot supply a frame.
func ScheduleCoroutine[T any](s *Scheduler, ctx context.Context, body func(*Coro[T]) (T, error), opts JobOptions, tag TagID, childDelta int32) (*CoroHandle[T], error) {
	if s.terminated.Load() {
		return nil, ErrShutdown
	}
	if body == nil {
		return nil, ErrNoProcessor
	}
	if parent := currentUnit(ctx); parent != nil && parent.kind == kindFunction {
		misuse("cannot schedule a coroutine from within a running FunctionJob")
	}

	c, ok := newCoroFrame[T](s, body, ctx)
	if !ok {
		return nil, ErrAllocationFailure
	}
	opts.apply(c.unit)

	if tag != NoTag {
		s.tags.park(c.unit, tag)
		return c, nil
	}

	parent := currentUnit(ctx)
	producer := currentThread(ctx)
	s.scheduleUnit(c.unit, parent, childDelta, producer)
	return c, nil
}

// resume implements coroResumer: it drives the coroutine goroutine from
// wherever it last suspended through to its next suspension point (or
// completion), blocking the calling worker for the duration.
func (c *Coro[T]) resume(thread ThreadIndex) {
	c.currentThread.Store(int32(thread))
	c.state.Store(int32(coroRunning))
	select {
	case c.resumeCh <- struct{}{}:
	case <-c.doneCh:
		return
	}
	<-c.yieldCh
}

func (c *Coro[T]) destroyed() bool {
	return coroState(c.state.Load()) == coroDestroyed
}

// forceDestroy tears down a coroutine that is sitting in a queue —
// never resumed at all, or parked mid-suspend — during scheduler
// teardown (spec.md I6). Safe to call more than once or concurrently
// with a natural finish; whichever happens first wins.
func (c *Coro[T]) forceDestroy() {
	select {
	case <-c.doneCh:
		return
	default:
	}
	closeOnce(c.abortCh)
	<-c.doneCh
}

func closeOnce(ch chan struct{}) {
	select {
	case <-ch:
	default:
		close(ch)
	}
}

// finishBody runs the final-awaiter logic (spec.md §4.5) once a
// coroutine body returns normally. A nil parent or a FunctionJob parent
// both resolve to the same "self-destruct" outcome: the frame is done,
// and nothing retains a live handle expecting to resume it further. A
// coroutine parent instead keeps the handle in coroFinalSuspended —
// the result is already readable through Get(), but the frame is
// considered "owned" by the parent until the parent itself is through
// with it.
func (c *Coro[T]) finishBody(result T, err error) {
	c.result = result
	c.err = err

	parent := c.unit.parent
	producer := ThreadIndex(c.currentThread.Load())
	if parent != nil {
		c.sched.notifyParentOnCoroFinish(parent, producer)
	}

	if parent == nil || parent.kind == kindFunction {
		c.state.Store(int32(coroDestroyed))
	} else {
		c.state.Store(int32(coroFinalSuspended))
	}
	close(c.doneCh)
	c.yieldCh <- struct{}{}
}

// Context returns a context.Context tagged with this coroutine's unit
// and its current worker thread, suitable for passing into Schedule or
// any other call that needs to know "who is currently running".
func (c *Coro[T]) Context() context.Context {
	return withCurrent(c.baseCtx, c.unit, ThreadIndex(c.currentThread.Load()))
}

// Done returns a channel closed once the result is readable.
func (c *Coro[T]) Done() <-chan struct{} { return c.doneCh }

// Get blocks until the coroutine finishes and returns its result.
func (c *Coro[T]) Get() (T, error) {
	<-c.doneCh
	return c.result, c.err
}

// TryGet returns the result without blocking; ok is false if the
// coroutine has not finished yet.
func (c *Coro[T]) TryGet() (value T, err error, ok bool) {
	select {
	case <-c.doneCh:
		return c.result, c.err, true
	default:
		var zero T
		return zero, nil, false
	}
}
