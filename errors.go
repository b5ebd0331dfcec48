package jobsystem

import "errors"

// Error taxonomy (spec.md §7).
var (
	// ErrCapacityRejected names the condition of a bounded queue (the
	// recycle pool) being full. No function of this package returns it:
	// a full recycle pool is handled internally by dropping the node for
	// the garbage collector and allocating fresh nodes when it is empty.
	ErrCapacityRejected = errors.New("jobsystem: capacity rejected")

	// ErrAllocationFailure is returned by ScheduleCoroutine when the
	// configured Allocator reports it could not provide a frame. The
	// coroutine body never runs in this case.
	ErrAllocationFailure = errors.New("jobsystem: coroutine frame allocation failed")

	// ErrShutdown is returned by Schedule/ScheduleCoroutine after
	// Terminate has been called, and by a suspended coroutine's Await,
	// AwaitTag or ResumeOn when teardown destroys it. A unit accepted
	// just before Terminate may still be destroyed in the terminal drain
	// without ever running.
	ErrShutdown = errors.New("jobsystem: scheduler is shutting down")

	// ErrNoProcessor mirrors the teacher's "no processor configured"
	// guard: Schedule returns it for a nil function and ScheduleCoroutine
	// for a nil coroutine body.
	ErrNoProcessor = errors.New("jobsystem: no processor configured")
)

// misuse panics with a diagnostic, matching spec.md §7's "these are
// programming errors; they abort the process with a diagnostic."
func misuse(msg string) {
	panic("jobsystem: misuse: " + msg)
}
