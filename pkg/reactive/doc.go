// Package reactive provides the small reactive substrate the interaction
// engine is built on: typed signals with equality-gated notification,
// listener tracking, batched updates, and a single-threaded event loop.
//
// Engine state (toggle booleans, counters, loading flags, error text) lives
// in signals so the rendering layer can subscribe once and be notified only
// when a value actually changes. All asynchronous work settles back onto a
// Loop via Dispatch, which keeps state transitions serialized the way a
// browser event loop would.
package reactive
