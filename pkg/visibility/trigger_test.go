package visibility

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/tessera-dev/tessera/pkg/reactive"
)

// fireCounter counts callback invocations across goroutines.
type fireCounter struct {
	n atomic.Int64
}

func (f *fireCounter) fn() func() {
	return func() { f.n.Add(1) }
}

func (f *fireCounter) count() int64 { return f.n.Load() }

const testDelay = 30 * time.Millisecond

// settle waits long enough for any pending testDelay timer to fire.
func settle() { time.Sleep(3 * testDelay) }

func TestTriggerFiresAfterDelay(t *testing.T) {
	var fired fireCounter
	h := Observe(&Element{ID: "post-1"}, Options{Threshold: 0.7, Delay: testDelay}, fired.fn())
	defer h.Dispose()

	h.Update(0.8)
	settle()

	if fired.count() != 1 {
		t.Errorf("expected 1 fire after delay, got %d", fired.count())
	}

	// Staying above the threshold must not re-fire within the episode.
	h.Update(0.9)
	h.Update(1.0)
	settle()

	if fired.count() != 1 {
		t.Errorf("expected still 1 fire within same episode, got %d", fired.count())
	}
}

func TestTriggerShortEpisodeNeverFires(t *testing.T) {
	var fired fireCounter
	h := Observe(&Element{ID: "post-1"}, Options{Threshold: 0.7, Delay: testDelay}, fired.fn())
	defer h.Dispose()

	h.Update(0.8)
	time.Sleep(testDelay / 3)
	h.Update(0.3) // drops below threshold before the window elapses

	settle()
	if fired.count() != 0 {
		t.Errorf("expected 0 fires for short episode, got %d", fired.count())
	}

	// Re-entry starts a fresh window.
	h.Update(0.8)
	settle()
	if fired.count() != 1 {
		t.Errorf("expected 1 fire after re-entry, got %d", fired.count())
	}
}

func TestTriggerZeroDelayFiresSynchronously(t *testing.T) {
	var fired fireCounter
	h := Observe(&Element{ID: "post-1"}, Options{Threshold: 0.5}, fired.fn())
	defer h.Dispose()

	h.Update(0.6)
	if fired.count() != 1 {
		t.Fatalf("expected synchronous fire, got %d", fired.count())
	}

	// Same episode: no re-fire.
	h.Update(0.9)
	if fired.count() != 1 {
		t.Errorf("expected no re-fire within episode, got %d", fired.count())
	}

	// New episode after dropping below.
	h.Update(0.1)
	h.Update(0.8)
	if fired.count() != 2 {
		t.Errorf("expected fire on new episode, got %d", fired.count())
	}
}

func TestTriggerBelowThresholdNeverFires(t *testing.T) {
	var fired fireCounter
	h := Observe(&Element{ID: "post-1"}, Options{Threshold: 0.7, Delay: testDelay}, fired.fn())
	defer h.Dispose()

	h.Update(0.69)
	h.Update(0.5)
	h.Update(0.0)
	settle()

	if fired.count() != 0 {
		t.Errorf("expected 0 fires below threshold, got %d", fired.count())
	}
}

func TestTriggerDisposeCancelsPending(t *testing.T) {
	var fired fireCounter
	h := Observe(&Element{ID: "post-1"}, Options{Threshold: 0.7, Delay: testDelay}, fired.fn())

	h.Update(0.8)
	h.Dispose()
	settle()

	if fired.count() != 0 {
		t.Errorf("expected 0 fires after dispose, got %d", fired.count())
	}

	// Updates after dispose are ignored.
	h.Update(0.9)
	settle()
	if fired.count() != 0 {
		t.Errorf("expected update after dispose to be ignored, got %d fires", fired.count())
	}

	h.Dispose() // idempotent
}

func TestTriggerNilElementIsInert(t *testing.T) {
	var fired fireCounter
	h := Observe(nil, Options{Threshold: 0.7}, fired.fn())

	h.Update(1.0)
	h.Dispose()
	h.Disposer()()

	if fired.count() != 0 {
		t.Errorf("inert handle fired %d times", fired.count())
	}
}

func TestTriggerNilCallbackIsInert(t *testing.T) {
	h := Observe(&Element{ID: "post-1"}, Options{Threshold: 0.7}, nil)
	h.Update(1.0)
	h.Dispose()
}

func TestTriggerHandlesAreIsolated(t *testing.T) {
	var a, b fireCounter
	ha := Observe(&Element{ID: "a"}, Options{Threshold: 0.5, Delay: testDelay}, a.fn())
	hb := Observe(&Element{ID: "b"}, Options{Threshold: 0.5, Delay: testDelay}, b.fn())
	defer ha.Dispose()
	defer hb.Dispose()

	ha.Update(0.9)
	hb.Update(0.9)
	time.Sleep(testDelay / 3)
	hb.Update(0.1) // cancels b only

	settle()
	if a.count() != 1 {
		t.Errorf("handle a: expected 1 fire, got %d", a.count())
	}
	if b.count() != 0 {
		t.Errorf("handle b: expected 0 fires, got %d", b.count())
	}
}

func TestTriggerThresholdClamped(t *testing.T) {
	var fired fireCounter
	h := Observe(&Element{ID: "post-1"}, Options{Threshold: 1.5}, fired.fn())
	defer h.Dispose()

	// Clamped to 1.0, so a fully visible element qualifies.
	h.Update(1.0)
	if fired.count() != 1 {
		t.Errorf("expected fire at clamped threshold, got %d", fired.count())
	}
}

func TestTriggerDeliversOnLoop(t *testing.T) {
	loop := reactive.NewLoop()
	defer loop.Stop()

	var fired fireCounter
	h := Observe(&Element{ID: "post-1"}, Options{Threshold: 0.7, Delay: testDelay, Notify: loop}, fired.fn())
	defer h.Dispose()

	h.Update(0.8)
	settle()
	loop.Flush()

	if fired.count() != 1 {
		t.Errorf("expected 1 fire via loop, got %d", fired.count())
	}
}
