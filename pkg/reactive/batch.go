package reactive

// Batch groups multiple signal updates into a single notification phase.
// Updates inside fn queue their notifications; when the outermost batch
// completes, affected listeners are deduplicated and notified once.
//
// Batches nest. Notifications only fire when the outermost batch completes.
//
// Example:
//
//	reactive.Batch(func() {
//	    active.Set(true)
//	    count.Update(func(n int) int { return n + 1 })
//	})
//	// Subscribers see one notification for both changes.
func Batch(fn func()) {
	incrementBatchDepth()

	defer func() {
		if decrementBatchDepth() {
			processPendingUpdates()
		}
	}()

	fn()
}

// processPendingUpdates deduplicates queued listeners by ID and notifies each
// one exactly once.
func processPendingUpdates() {
	updates := drainPendingUpdates()
	if len(updates) == 0 {
		return
	}

	seen := make(map[uint64]bool, len(updates))
	for _, l := range updates {
		id := l.ID()
		if seen[id] {
			continue
		}
		seen[id] = true
		l.MarkDirty()
	}
}

// Untracked runs fn without tracking signal reads as dependencies.
// For single reads, Signal.Peek is clearer.
func Untracked(fn func()) {
	old := setCurrentListener(nil)
	defer setCurrentListener(old)
	fn()
}
