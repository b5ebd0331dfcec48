// Package placement implements the Worker placement policies described
// in spec.md §4.2, grounded on the teacher's strategies.Strategy
// interface and StrategyFactory (go-foundations/workerpool/strategies),
// narrowed to the two behaviors spec.md actually defines: placing a unit
// that declares a target thread, and round-robin placement when it does
// not. The teacher's other distribution strategies (Chunked,
// WorkStealing, PriorityBased) model something the core Worker dispatch
// loop already does internally in this spec (stealing is built into
// every worker's poll loop, not a separate opt-in strategy) — see
// DESIGN.md for why they were not carried over as pluggable Strategy
// implementations.
package placement

import "sync/atomic"

// Target describes where a unit should land: either a specific worker
// or "any" (round-robin assigns one).
type Target struct {
	Index     int32
	HasTarget bool
}

// Any is the placement requesting round-robin assignment.
var Any = Target{HasTarget: false}

// ForThread requests a specific worker index.
func ForThread(index int32) Target {
	return Target{Index: index, HasTarget: true}
}

// Policy decides which worker should receive a unit, mirroring the
// teacher's Strategy[T,R] interface shape (a single method that takes
// the scheduling-time inputs it needs and returns a decision) adapted
// from "execute the whole run" to "place one unit".
type Policy interface {
	// Place returns the worker index a unit with the given target should
	// be pushed to. It does not choose between the local and shared
	// queue; the caller decides that.
	Place(requested Target, producerIndex int32, numWorkers int32) (workerIndex int32)

	// Name returns a human-readable name, mirroring the teacher's
	// Strategy.Name().
	Name() string
}

// RoundRobin implements the "no target" placement branch: round-robin
// over worker indices using a shared cursor, one per Scheduler.
// Grounded on the teacher's runRoundRobin and
// VgjsJobSystem::next_thread_index.
type RoundRobin struct {
	cursor atomic.Int32
}

// NewRoundRobin returns a fresh round-robin cursor starting at 0.
func NewRoundRobin() *RoundRobin { return &RoundRobin{} }

func (r *RoundRobin) Place(requested Target, _ int32, numWorkers int32) int32 {
	if requested.HasTarget {
		return requested.Index
	}
	if numWorkers <= 0 {
		return 0
	}
	next := r.cursor.Add(1) - 1
	idx := next % numWorkers
	if idx < 0 {
		idx += numWorkers
	}
	return idx
}

func (r *RoundRobin) Name() string { return "round-robin" }

// TargetThread implements the "explicit target" placement branch as its
// own Policy, for callers that want every untargeted unit to go to a
// fixed worker regardless of a cursor (e.g. tests pinning work to worker
// 0). A unit with an explicit target still goes to that target.
type TargetThread struct {
	Index int32
}

func (t TargetThread) Place(requested Target, _ int32, _ int32) int32 {
	if requested.HasTarget {
		return requested.Index
	}
	return t.Index
}

func (t TargetThread) Name() string { return "target-thread" }
