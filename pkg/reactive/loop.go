package reactive

import "sync"

// Dispatcher queues work onto a serialized execution context.
// It is the seam between asynchronous completions (network calls, timers)
// and engine state: goroutines never touch signals directly, they Dispatch
// a closure that applies the result.
type Dispatcher interface {
	// Dispatch queues fn to run on the owning loop.
	// Safe to call from any goroutine.
	Dispatch(fn func())
}

// Loop is a single-threaded cooperative event loop. All engine state
// transitions for one UI surface run on one Loop, which rules out parallel
// mutation the same way a browser's main thread does.
type Loop struct {
	ch   chan func()
	done chan struct{}

	stopOnce sync.Once
}

// defaultQueueSize bounds how many dispatched closures can be pending.
const defaultQueueSize = 256

// NewLoop creates a Loop and starts draining it on its own goroutine.
func NewLoop() *Loop {
	l := &Loop{
		ch:   make(chan func(), defaultQueueSize),
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	for {
		select {
		case fn := <-l.ch:
			fn()
		case <-l.done:
			return
		}
	}
}

// Dispatch queues fn to run on the loop goroutine.
// Calls on a stopped loop are dropped.
func (l *Loop) Dispatch(fn func()) {
	select {
	case <-l.done:
		return
	default:
	}
	select {
	case <-l.done:
	case l.ch <- fn:
	}
}

// Flush blocks until every closure dispatched before it has run.
// Returns immediately on a stopped loop.
func (l *Loop) Flush() {
	ran := make(chan struct{})
	l.Dispatch(func() { close(ran) })
	select {
	case <-ran:
	case <-l.done:
	}
}

// Stop shuts the loop down. Pending closures that have not started are
// discarded. Stop is idempotent.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

// Sync is a Dispatcher that runs closures inline on the calling goroutine.
// Useful for tests and for fully synchronous embeddings.
type Sync struct{}

// Dispatch runs fn immediately.
func (Sync) Dispatch(fn func()) { fn() }
