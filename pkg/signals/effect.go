package signals

import (
	"sync"
	"sync/atomic"
)

// Effect is a reactive side effect. It runs once on creation and re-runs
// whenever any signal or memo it read during its last run changes. The
// body may return a Cleanup that runs before the next re-run and on
// Dispose.
//
// Without a surrounding scheduler, re-runs happen synchronously inside
// the notification that invalidated the effect (or at batch completion
// when inside Batch).
type Effect struct {
	id uint64

	fn      func() Cleanup
	cleanup Cleanup

	sources   []*broadcaster
	sourcesMu sync.Mutex

	disposed atomic.Bool
}

// NewEffect creates and immediately runs an effect.
func NewEffect(fn func() Cleanup) *Effect {
	e := &Effect{
		id: nextID(),
		fn: fn,
	}
	e.run()
	return e
}

// MarkDirty re-runs the effect. Implements Listener.
func (e *Effect) MarkDirty() {
	if e.disposed.Load() {
		return
	}
	e.run()
}

// ID returns the unique identifier for this effect.
func (e *Effect) ID() uint64 { return e.id }

// Dispose stops the effect: runs its pending cleanup and detaches from
// all sources. Safe to call more than once.
func (e *Effect) Dispose() {
	if e.disposed.Swap(true) {
		return
	}

	if e.cleanup != nil {
		e.cleanup()
		e.cleanup = nil
	}

	e.sourcesMu.Lock()
	for _, s := range e.sources {
		s.detach(e)
	}
	e.sources = nil
	e.sourcesMu.Unlock()
}

// addSource implements sourced.
func (e *Effect) addSource(b *broadcaster) {
	e.sourcesMu.Lock()
	defer e.sourcesMu.Unlock()
	for _, s := range e.sources {
		if s == b {
			return
		}
	}
	e.sources = append(e.sources, b)
}

func (e *Effect) run() {
	if e.disposed.Load() {
		return
	}

	if e.cleanup != nil {
		e.cleanup()
		e.cleanup = nil
	}

	// Re-collect the dependency set from scratch each run.
	e.sourcesMu.Lock()
	for _, s := range e.sources {
		s.detach(e)
	}
	e.sources = e.sources[:0]
	e.sourcesMu.Unlock()

	old := swapListener(e)
	e.cleanup = e.fn()
	swapListener(old)
}
