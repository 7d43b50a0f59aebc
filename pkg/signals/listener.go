package signals

import (
	"sync"
	"sync/atomic"
)

// Listener is anything that can be told a dependency changed.
// Memos and effects implement it internally; Watch wraps a plain
// callback in one.
type Listener interface {
	// MarkDirty notifies the listener that one of its dependencies changed.
	MarkDirty()

	// ID returns a unique identifier, used to deduplicate subscriptions
	// and batched notifications.
	ID() uint64
}

// Cleanup is returned by an effect body to release resources before the
// effect re-runs or when it is disposed.
type Cleanup func()

// globalID is the source of unique IDs for every reactive primitive.
var globalID uint64

func nextID() uint64 {
	return atomic.AddUint64(&globalID, 1)
}

// watcher adapts a plain callback to the Listener interface.
// Used by Signal.Watch and Memo.Watch.
type watcher struct {
	id uint64
	fn func()

	stopped atomic.Bool
}

func newWatcher(fn func()) *watcher {
	return &watcher{id: nextID(), fn: fn}
}

func (w *watcher) MarkDirty() {
	if w.stopped.Load() {
		return
	}
	w.fn()
}

func (w *watcher) ID() uint64 { return w.id }

// stopFunc builds the idempotent unsubscribe capability Watch returns.
// Calling it more than once is a no-op.
func (w *watcher) stopFunc(b *broadcaster) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			w.stopped.Store(true)
			b.detach(w)
		})
	}
}
