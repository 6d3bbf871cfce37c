package common

import "sync"

// Future is a one-shot, single-value completion signal: exactly one
// caller resolves it, any number of callers may wait on it. It is the
// future/promise counterpart to the condition-variable-based completion
// scheme a disk scheduler could otherwise use (spec.md §9 calls the two
// equivalent); a Future keeps the disk scheduler's worker loop and its
// callers decoupled from any particular synchronization primitive.
type Future struct {
	mu   sync.Mutex
	cond *sync.Cond
	done bool
	ok   bool
}

// NewFuture returns an unresolved Future.
func NewFuture() *Future {
	f := &Future{}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Resolve marks the future complete with the given outcome. Resolving an
// already-resolved future is a programming error: the disk scheduler
// schedules exactly one completion per request.
func (f *Future) Resolve(ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	Assert(!f.done, "future resolved more than once")
	f.done = true
	f.ok = ok
	f.cond.Broadcast()
}

// Wait blocks until the future is resolved and returns its outcome.
func (f *Future) Wait() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for !f.done {
		f.cond.Wait()
	}
	return f.ok
}
