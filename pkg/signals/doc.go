// Package signals provides the reactive primitives LiveQ builds on:
// writable signals, lazy memos, effects, and batched notification.
//
// A Signal is a mutable holder of a value. Reading it inside a tracked
// context (a memo computation or an effect body) subscribes the current
// listener, so the listener re-runs when the value changes. Reads outside
// any tracked context are plain reads.
//
// The package is self-contained: the LiveQ core consumes only Get, Peek,
// Set, Watch and Effect, so another reactive library can stand in for it
// behind the same narrow surface.
//
// Concurrency: signals are safe for concurrent use. Notification uses a
// copy-before-notify discipline, so listeners run without any package
// lock held and may freely read or write other signals.
package signals
