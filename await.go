package jobsystem

import "context"

// awaitItem is one element of a Coro.Await call (spec.md §4.4a's
// "parallel tuple"). Go has no heterogeneous-tuple reflection to mirror
// the source's awaitable_tuple<PT, Ts...> template, so each item type
// carries its own typed result instead of Await returning one aggregated
// value — the caller reads results back off the item it passed in
// (CoroItem/CoroSlice expose Result()/Results() after Await returns).
// Await itself returns no aggregated value.
type awaitItem interface {
	// count is how many units this item contributes to the awaiting
	// coroutine's child total.
	count() int
	// enqueue schedules this item's unit(s) as children of parent,
	// consuming *delta for the first unit scheduled across the whole
	// Await call and zeroing it out afterward.
	enqueue(s *Scheduler, parent *workUnit, delta *int32, producer ThreadIndex)
	// parkUnder defers this item's unit(s) under tag instead of
	// dispatching them immediately (spec.md §4.4a, the tagged branch).
	parkUnder(s *Scheduler, tag TagID)
}

// tagCarrier is implemented only by TagItem; Await uses it to pull the
// tag value out of the item list without a type switch over every
// concrete item type.
type tagCarrier interface {
	tagValue() TagID
}

// tagItem marks a TagID inside an Await call — spec.md §4.4a: when a
// tuple contains a TagId, every other item is parked under that tag
// instead of being scheduled immediately, and Await does not suspend
// (scheduling was deferred; there is nothing to wait for locally yet).
type tagItem struct{ tag TagID }

// TagItem wraps a TagID for use inside Coro.Await.
func TagItem(tag TagID) awaitItem { return tagItem{tag: tag} }

func (t tagItem) count() int                                         { return 0 }
func (t tagItem) enqueue(*Scheduler, *workUnit, *int32, ThreadIndex) {}
func (t tagItem) parkUnder(*Scheduler, TagID)                        {}
func (t tagItem) tagValue() TagID                                    { return t.tag }

// funcItem schedules a single FunctionJob body as a child.
type funcItem struct{ fn func(context.Context) }

// FuncItem wraps a plain function for use inside Coro.Await, contributing
// one child unit and no return value.
func FuncItem(fn func(context.Context)) awaitItem { return &funcItem{fn: fn} }

func (f *funcItem) count() int { return 1 }

func (f *funcItem) enqueue(s *Scheduler, parent *workUnit, delta *int32, producer ThreadIndex) {
	u := s.acquireFunctionUnit(f.fn, context.Background())
	d := *delta
	*delta = 0
	s.attachChild(u, parent, d, producer)
}

func (f *funcItem) parkUnder(s *Scheduler, tag TagID) {
	u := s.acquireFunctionUnit(f.fn, context.Background())
	s.tags.park(u, tag)
}

// funcSliceItem schedules a slice of FunctionJob bodies as children, one
// unit per function, mirroring the source's "a vector contributes its
// length" shape rule.
type funcSliceItem struct{ fns []func(context.Context) }

// FuncSlice wraps a slice of functions for use inside Coro.Await.
func FuncSlice(fns []func(context.Context)) awaitItem { return &funcSliceItem{fns: fns} }

func (f *funcSliceItem) count() int { return len(f.fns) }

func (f *funcSliceItem) enqueue(s *Scheduler, parent *workUnit, delta *int32, producer ThreadIndex) {
	for _, fn := range f.fns {
		u := s.acquireFunctionUnit(fn, context.Background())
		d := *delta
		*delta = 0
		s.attachChild(u, parent, d, producer)
	}
}

func (f *funcSliceItem) parkUnder(s *Scheduler, tag TagID) {
	for _, fn := range f.fns {
		u := s.acquireFunctionUnit(fn, context.Background())
		s.tags.park(u, tag)
	}
}

// coroItem schedules a single CoroutineJob as a child and remembers its
// handle so the caller can read the typed result after Await returns.
type coroItem[T any] struct {
	body   func(*Coro[T]) (T, error)
	handle *CoroHandle[T]
}

// CoroItem wraps a coroutine body for use inside Coro.Await, contributing
// one child unit and a T result readable via Result/Err once Await
// returns.
func CoroItem[T any](body func(*Coro[T]) (T, error)) *coroItem[T] {
	return &coroItem[T]{body: body}
}

func (c *coroItem[T]) count() int { return 1 }

func (c *coroItem[T]) enqueue(s *Scheduler, parent *workUnit, delta *int32, producer ThreadIndex) {
	frame, ok := newCoroFrame[T](s, c.body, context.Background())
	if !ok {
		return // allocation failure: Result()/Err() report the zero value / ErrAllocationFailure
	}
	d := *delta
	*delta = 0
	s.attachChild(frame.unit, parent, d, producer)
	c.handle = frame
}

func (c *coroItem[T]) parkUnder(s *Scheduler, tag TagID) {
	frame, ok := newCoroFrame[T](s, c.body, context.Background())
	if !ok {
		return
	}
	s.tags.park(frame.unit, tag)
	c.handle = frame
}

// Result returns the coroutine's return value, blocking until it
// finishes. Returns the zero value if the Allocator could not supply a
// frame for it.
func (c *coroItem[T]) Result() T {
	if c.handle == nil {
		var zero T
		return zero
	}
	v, _ := c.handle.Get()
	return v
}

// Err returns the coroutine's error, or ErrAllocationFailure if it never
// ran.
func (c *coroItem[T]) Err() error {
	if c.handle == nil {
		return ErrAllocationFailure
	}
	_, err := c.handle.Get()
	return err
}

// coroSliceItem schedules a slice of CoroutineJob bodies as children,
// mirroring the source's "a vector of awaitables stays a vector of
// results" shape rule.
type coroSliceItem[T any] struct {
	bodies  []func(*Coro[T]) (T, error)
	handles []*CoroHandle[T]
}

// CoroSlice wraps a slice of coroutine bodies for use inside Coro.Await.
func CoroSlice[T any](bodies []func(*Coro[T]) (T, error)) *coroSliceItem[T] {
	return &coroSliceItem[T]{bodies: bodies}
}

func (c *coroSliceItem[T]) count() int { return len(c.bodies) }

func (c *coroSliceItem[T]) enqueue(s *Scheduler, parent *workUnit, delta *int32, producer ThreadIndex) {
	c.handles = make([]*CoroHandle[T], len(c.bodies))
	for i, body := range c.bodies {
		frame, ok := newCoroFrame[T](s, body, context.Background())
		if !ok {
			continue
		}
		d := *delta
		*delta = 0
		s.attachChild(frame.unit, parent, d, producer)
		c.handles[i] = frame
	}
}

func (c *coroSliceItem[T]) parkUnder(s *Scheduler, tag TagID) {
	c.handles = make([]*CoroHandle[T], len(c.bodies))
	for i, body := range c.bodies {
		frame, ok := newCoroFrame[T](s, body, context.Background())
		if !ok {
			continue
		}
		s.tags.park(frame.unit, tag)
		c.handles[i] = frame
	}
}

// Results returns every coroutine's return value, in input order,
// blocking until all finish. A slot whose Allocator call failed reports
// the zero value.
func (c *coroSliceItem[T]) Results() []T {
	out := make([]T, len(c.handles))
	for i, h := range c.handles {
		if h == nil {
			continue
		}
		v, _ := h.Get()
		out[i] = v
	}
	return out
}

// Await schedules every item as a child of this coroutine and suspends
// until they all finish (spec.md §4.4a), unless:
//   - every item contributes zero units and no tag was present (nothing
//     to wait for; returns immediately without suspending), or
//   - a TagItem is present, in which case every other item is parked
//     under that tag instead of scheduled, and Await returns immediately
//     without suspending — scheduling was deferred to a later
//     ScheduleTag/AwaitTag call.
//
// Returns ErrShutdown if the scheduler began terminating while this
// coroutine was suspended.
func (c *Coro[T]) Await(items ...awaitItem) error {
	total := 0
	tag := NoTag
	for _, it := range items {
		if tc, ok := it.(tagCarrier); ok {
			tag = tc.tagValue()
			continue
		}
		total += it.count()
	}

	if tag != NoTag {
		for _, it := range items {
			if _, ok := it.(tagCarrier); ok {
				continue
			}
			it.parkUnder(c.sched, tag)
		}
		return nil
	}

	if total == 0 {
		return nil
	}

	delta := int32(total)
	producer := ThreadIndex(c.currentThread.Load())
	for _, it := range items {
		it.enqueue(c.sched, c.unit, &delta, producer)
	}
	return c.suspend()
}

// ResumeOn migrates this coroutine to thread, suspending and resuming it
// there (spec.md §4.4b). A no-op if already running on thread.
func (c *Coro[T]) ResumeOn(thread ThreadIndex) error {
	if ThreadIndex(c.currentThread.Load()) == thread {
		return nil
	}
	c.unit.targetThread = thread
	// Passing thread as the producer routes the unit into thread's local
	// queue, which only that worker pops, so no peer can steal it.
	c.sched.rescheduleUnit(c.unit, thread)
	return c.suspend()
}

// AwaitTag drains every unit parked under tag and schedules them as
// children of this coroutine, suspending until they all finish (spec.md
// §4.4c). Returns (0, nil) without suspending if nothing was ever parked
// under tag.
func (c *Coro[T]) AwaitTag(tag TagID) (int, error) {
	if tag == NoTag {
		return 0, nil
	}
	n := c.sched.ScheduleTag(c.Context(), tag)
	if n == 0 {
		return 0, nil
	}
	if err := c.suspend(); err != nil {
		return 0, err
	}
	return n, nil
}

// suspend hands control back to whichever worker is driving this
// coroutine and blocks until it is resumed again, or the scheduler
// begins terminating.
func (c *Coro[T]) suspend() error {
	c.state.Store(int32(coroSuspended))
	c.yieldCh <- struct{}{}
	select {
	case <-c.resumeCh:
		c.state.Store(int32(coroRunning))
		return nil
	case <-c.abortCh:
		c.state.Store(int32(coroDestroyed))
		return ErrShutdown
	}
}
