package jobsystem

import (
	"sync"
	"time"
)

// wakeGroup is the idiomatic Go substitute for the source's
// std::condition_variable + notify_all(): a channel that gets closed and
// replaced under a mutex every time new work appears anywhere, so every
// sleeping worker's select wakes simultaneously (spec.md §4.2 step 3).
// time.After provides the bounded wait the source gets from
// wait_for(100µs); there is no blanket per-worker polling loop, only one
// select per idle iteration.
type wakeGroup struct {
	mu sync.Mutex
	ch chan struct{}
}

func newWakeGroup() *wakeGroup {
	return &wakeGroup{ch: make(chan struct{})}
}

// wait blocks until broadcast is called or timeout elapses, whichever
// comes first.
func (w *wakeGroup) wait(timeout time.Duration) {
	w.mu.Lock()
	ch := w.ch
	w.mu.Unlock()

	select {
	case <-ch:
	case <-time.After(timeout):
	}
}

// broadcast wakes every worker currently blocked in wait.
func (w *wakeGroup) broadcast() {
	w.mu.Lock()
	close(w.ch)
	w.ch = make(chan struct{})
	w.mu.Unlock()
}
