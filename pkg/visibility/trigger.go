// Package visibility implements the debounced visibility trigger: a callback
// fires only after an observed element's intersection ratio has stayed at or
// above a threshold continuously for a configured delay.
//
// The engine is headless. It never touches a DOM; runtimes deliver
// intersection ratio updates through Handle.Update, typically from client
// observer events arriving over the live socket.
package visibility

import (
	"sync"
	"time"

	"github.com/tessera-dev/tessera/pkg/reactive"
)

// Element is an opaque handle to a rendered node. A nil Element means the
// node is not mounted, and observing it is a no-op.
type Element struct {
	// ID identifies the node to the runtime that routes intersection
	// updates to the right handle, e.g. a feed item id.
	ID string
}

// Options configures one observation.
type Options struct {
	// Threshold is the intersection ratio, in [0, 1], at or above which the
	// element counts as visible. Values outside the range are clamped.
	Threshold float64

	// Delay is how long the ratio must stay at or above Threshold before
	// the callback fires. Zero fires synchronously on the qualifying
	// update. Negative is treated as zero.
	Delay time.Duration

	// RootMargin is forwarded verbatim to the client-side observer.
	// The engine itself never interprets it.
	RootMargin string

	// Notify, when set, delivers the callback via Dispatch so it runs on
	// the owning event loop. When nil the callback runs on the timer
	// goroutine, or inline for a zero Delay.
	Notify reactive.Dispatcher
}

// Handle is one live observation. Each handle owns its own visibility state
// and timer; concurrent handles never affect each other.
type Handle struct {
	opts      Options
	onVisible func()

	mu       sync.Mutex
	above    bool
	timer    *time.Timer
	gen      uint64
	disposed bool
	inert    bool
}

// Observe starts observing el and returns the handle the runtime feeds
// intersection updates into. The callback fires once per visibility episode:
// a continuous interval with the ratio at or above the threshold, lasting at
// least the configured delay. Dropping below the threshold before the delay
// elapses cancels the pending callback for that episode; a later re-entry
// starts a fresh delay window.
//
// A nil element or callback yields an inert handle whose Update and Dispose
// are no-ops, so callers never need to special-case unmounted nodes.
func Observe(el *Element, opts Options, onVisible func()) *Handle {
	if el == nil || onVisible == nil {
		return &Handle{inert: true}
	}

	if opts.Threshold < 0 {
		opts.Threshold = 0
	} else if opts.Threshold > 1 {
		opts.Threshold = 1
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}

	return &Handle{opts: opts, onVisible: onVisible}
}

// Update delivers a new intersection ratio for the observed element.
func (h *Handle) Update(ratio float64) {
	if h.inert {
		return
	}

	h.mu.Lock()
	if h.disposed {
		h.mu.Unlock()
		return
	}

	above := ratio >= h.opts.Threshold
	wasAbove := h.above
	h.above = above

	if !above {
		// The episode ended. Cancel any pending callback.
		h.cancelTimerLocked()
		h.mu.Unlock()
		return
	}

	if wasAbove {
		// Still inside the same episode; the window is already armed or
		// has already fired.
		h.mu.Unlock()
		return
	}

	// A new episode begins.
	if h.opts.Delay == 0 {
		h.mu.Unlock()
		h.deliver()
		return
	}

	gen := h.gen
	h.timer = time.AfterFunc(h.opts.Delay, func() {
		h.mu.Lock()
		if h.disposed || h.gen != gen {
			h.mu.Unlock()
			return
		}
		h.timer = nil
		h.mu.Unlock()
		h.deliver()
	})
	h.mu.Unlock()
}

// cancelTimerLocked stops a pending timer and invalidates any fire that
// already raced past Stop. Callers hold h.mu.
func (h *Handle) cancelTimerLocked() {
	h.gen++
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}

// deliver hands the callback to the configured dispatcher, checking the
// disposed flag again on the loop so a handle torn down mid-flight never
// observes a late callback.
func (h *Handle) deliver() {
	if h.opts.Notify == nil {
		h.onVisible()
		return
	}
	h.opts.Notify.Dispatch(func() {
		h.mu.Lock()
		disposed := h.disposed
		h.mu.Unlock()
		if !disposed {
			h.onVisible()
		}
	})
}

// Dispose stops observation and cancels any pending callback.
// Dispose is idempotent.
func (h *Handle) Dispose() {
	if h.inert {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return
	}
	h.disposed = true
	h.cancelTimerLocked()
}

// Disposer returns Dispose as a plain function, for callers that tie the
// observation to a component cleanup.
func (h *Handle) Disposer() func() {
	return h.Dispose
}
