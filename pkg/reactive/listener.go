package reactive

// Listener is anything that can be notified when a signal it read changes.
// Renderers, bindings, and test probes implement this.
type Listener interface {
	// MarkDirty notifies the listener that one of its dependencies changed.
	MarkDirty()

	// ID returns a unique identifier for this listener.
	// Used for deduplication during batch processing.
	ID() uint64
}
