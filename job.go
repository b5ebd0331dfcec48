package jobsystem

import (
	"context"
	"sync/atomic"
)

// ThreadIndex identifies one worker's dispatch loop. NoThread means
// "unspecified" / "any"; every other value, negative ones included, is
// taken as a target and reduced modulo the worker count on dispatch.
type ThreadIndex int32

// NoThread is the sentinel meaning "no target thread requested".
const NoThread ThreadIndex = -1

// TagID identifies a batch of work parked in the TagRegistry for later
// bulk scheduling. Only NoTag is treated as "not tagged"; other negative
// values are used as ordinary tags by Schedule, ScheduleCoroutine,
// Await, ScheduleTag and AwaitTag.
type TagID int64

// NoTag is the sentinel meaning "not tagged".
const NoTag TagID = -1

// unitKind discriminates the two WorkUnit variants.
type unitKind uint8

const (
	kindFunction unitKind = iota
	kindCoroutine
)

// workUnit is the uniform scheduling node shared by FunctionJob and
// CoroutineJob (spec.md §3). next is exclusively owned by whichever
// Queue currently holds the unit (I1); parent is a non-owning back
// reference enforced by the completion protocol, never by the Go
// garbage collector.
type workUnit struct {
	next         *workUnit
	targetThread ThreadIndex
	typeTag      int64
	id           int64
	parent       *workUnit
	kind         unitKind
	children     atomic.Uint32

	// run executes a FunctionJob's body. Nil for CoroutineJob units. The
	// worker builds the execution context (carrying this unit and its own
	// ThreadIndex) at dispatch time, since an untargeted unit is not bound
	// to a worker until one actually dequeues it.
	run     func(context.Context)
	baseCtx context.Context

	// coro is set only for kindCoroutine units; it is the CoroutineRuntime
	// handle that knows how to resume itself and report completion.
	coro coroResumer
}

// coroResumer is the subset of a coroutine's machinery the Worker and
// Scheduler need without depending on the CoroutineJob's generic return
// type (Go generics cannot be expressed on workUnit itself, since a
// Queue must hold heterogeneous coroutine return types uniformly).
type coroResumer interface {
	// resume drives the coroutine until its next suspension point or
	// final-suspend, reporting the worker thread it is logically running
	// on for the duration of the call. Called by exactly one worker at a
	// time (I2).
	resume(thread ThreadIndex)
	// destroyed reports whether the coroutine has already torn down its
	// frame (final-suspend with no parent, or self-destruct).
	destroyed() bool
	// forceDestroy tears down a coroutine that never ran, or never
	// finished, during scheduler teardown (spec.md I6).
	forceDestroy()
}

// resetForFunction prepares a recycled workUnit to carry a new
// FunctionJob body. Mirrors the teacher's recycle-pool reuse instead of
// allocating a fresh node for every schedule call.
func (w *workUnit) resetForFunction(fn func(context.Context), baseCtx context.Context) {
	w.next = nil
	w.targetThread = NoThread
	w.typeTag = 0
	w.id = 0
	w.parent = nil
	w.kind = kindFunction
	w.children.Store(1) // +1 self-count convention (spec.md §4.3)
	w.run = fn
	w.baseCtx = baseCtx
	w.coro = nil
}

// newCoroutineUnit builds the workUnit node for a CoroutineJob. children
// starts at 0: a coroutine only counts its scheduled descendants, never
// itself (spec.md §3 Lifecycle).
func newCoroutineUnit(c coroResumer) *workUnit {
	u := &workUnit{
		targetThread: NoThread,
		kind:         kindCoroutine,
		coro:         c,
	}
	u.children.Store(0)
	return u
}

// JobOptions carries the placement metadata a caller may attach to a
// unit before scheduling it (spec.md §6 "Worker placement options").
// The zero value is not "unspecified any thread" — use DefaultJobOptions
// to get TargetThread set to NoThread, matching the source's strong-typed
// -1 default.
type JobOptions struct {
	TargetThread ThreadIndex // NoThread means "any"
	Type         int64       // opaque, for observability
	ID           int64       // opaque, for observability
}

// DefaultJobOptions returns options with no target thread requested.
func DefaultJobOptions() JobOptions {
	return JobOptions{TargetThread: NoThread}
}

func (o JobOptions) apply(u *workUnit) {
	u.targetThread = o.TargetThread
	u.typeTag = o.Type
	u.id = o.ID
}
