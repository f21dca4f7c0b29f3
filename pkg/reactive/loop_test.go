package reactive

import (
	"sync/atomic"
	"testing"
)

func TestLoopDispatchRunsInOrder(t *testing.T) {
	loop := NewLoop()
	defer loop.Stop()

	var order []int
	for i := 0; i < 10; i++ {
		i := i
		loop.Dispatch(func() { order = append(order, i) })
	}
	loop.Flush()

	if len(order) != 10 {
		t.Fatalf("expected 10 closures to run, got %d", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Errorf("position %d: expected %d, got %d", i, i, v)
		}
	}
}

func TestLoopDispatchFromManyGoroutines(t *testing.T) {
	loop := NewLoop()
	defer loop.Stop()

	var ran atomic.Int64
	done := make(chan struct{})
	for i := 0; i < 20; i++ {
		go func() {
			loop.Dispatch(func() { ran.Add(1) })
			done <- struct{}{}
		}()
	}
	for i := 0; i < 20; i++ {
		<-done
	}
	loop.Flush()

	if ran.Load() != 20 {
		t.Errorf("expected 20 dispatches to run, got %d", ran.Load())
	}
}

func TestLoopStopDropsLateDispatch(t *testing.T) {
	loop := NewLoop()
	loop.Stop()

	// Must not block or panic.
	loop.Dispatch(func() { t.Error("closure ran on stopped loop") })
	loop.Flush()
	loop.Stop()
}

func TestSyncDispatcherRunsInline(t *testing.T) {
	var ran bool
	Sync{}.Dispatch(func() { ran = true })
	if !ran {
		t.Error("Sync.Dispatch did not run inline")
	}
}
