package jobsystem

import "context"

// ctxKey namespaces the values this package stashes on a context.Context,
// mirroring the teacher's use of ctx for cancellation but extending it to
// carry the running unit's identity — the idiomatic Go substitute for
// thread-local "current job" storage (spec.md §6 current_thread_index,
// §9 "task-local storage keyed by the worker thread").
type ctxKey int

const (
	ctxKeyUnit ctxKey = iota
	ctxKeyThread
)

// withCurrent returns a context carrying the unit presently executing on
// thread and that thread's index. Built once per dispatch, not once per
// schedule call, since a unit with no explicit target is not assigned a
// worker until a worker actually dequeues it.
func withCurrent(parent context.Context, u *workUnit, thread ThreadIndex) context.Context {
	parent = context.WithValue(parent, ctxKeyUnit, u)
	parent = context.WithValue(parent, ctxKeyThread, thread)
	return parent
}

// currentUnit returns the workUnit running on ctx's goroutine, or nil if
// ctx was never derived from withCurrent (i.e. the caller is off-worker).
func currentUnit(ctx context.Context) *workUnit {
	u, _ := ctx.Value(ctxKeyUnit).(*workUnit)
	return u
}

// currentThread returns the ThreadIndex associated with ctx, or NoThread
// if ctx carries none — spec.md §6's current_thread_index() returning
// None when called off a worker.
func currentThread(ctx context.Context) ThreadIndex {
	idx, ok := ctx.Value(ctxKeyThread).(ThreadIndex)
	if !ok {
		return NoThread
	}
	return idx
}
