package signals

import (
	"sync"
	"sync/atomic"
)

// Memo is a cached derivation that tracks its own dependencies. When any
// dependency changes the memo is invalidated and recomputes lazily on
// the next read. Memos are themselves subscribable, so derivations can
// be chained.
type Memo[T any] struct {
	base broadcaster

	compute func() T

	value   T
	valueMu sync.RWMutex

	// valid reports whether the cached value is current.
	valid atomic.Bool

	// sources are the broadcasters read during the last computation.
	sources   []*broadcaster
	sourcesMu sync.Mutex

	// computing breaks recursion on circular dependencies.
	computing atomic.Bool
}

// NewMemo creates a memo for compute. The computation does not run until
// the first Get or Peek.
func NewMemo[T any](compute func() T) *Memo[T] {
	return &Memo[T]{
		base:    broadcaster{id: nextID()},
		compute: compute,
	}
}

// Get returns the memo's value, recomputing if invalidated, and
// subscribes the current listener.
func (m *Memo[T]) Get() T {
	m.base.track()

	if !m.valid.Load() {
		m.recompute()
	}

	m.valueMu.RLock()
	v := m.value
	m.valueMu.RUnlock()
	return v
}

// Peek returns the value without subscribing. Still recomputes when
// invalid.
func (m *Memo[T]) Peek() T {
	if !m.valid.Load() {
		m.recompute()
	}
	m.valueMu.RLock()
	v := m.value
	m.valueMu.RUnlock()
	return v
}

// Watch registers fn to run whenever the memo is invalidated. The
// returned unsubscribe is idempotent.
func (m *Memo[T]) Watch(fn func()) func() {
	w := newWatcher(fn)
	m.base.attach(w)
	return w.stopFunc(&m.base)
}

// MarkDirty invalidates the cached value and propagates to subscribers.
// Implements Listener; CAS keeps repeated invalidations cheap.
func (m *Memo[T]) MarkDirty() {
	if m.valid.CompareAndSwap(true, false) {
		m.base.dirtyAll()
	}
}

// ID returns the unique identifier for this memo.
func (m *Memo[T]) ID() uint64 { return m.base.id }

// addSource implements sourced.
func (m *Memo[T]) addSource(b *broadcaster) {
	m.sourcesMu.Lock()
	defer m.sourcesMu.Unlock()
	for _, s := range m.sources {
		if s == b {
			return
		}
	}
	m.sources = append(m.sources, b)
}

func (m *Memo[T]) recompute() {
	if m.computing.Swap(true) {
		// Circular dependency; keep the stale value.
		return
	}
	defer m.computing.Store(false)

	// Drop the previous dependency set; the run below re-collects it.
	m.sourcesMu.Lock()
	for _, s := range m.sources {
		s.detach(m)
	}
	m.sources = m.sources[:0]
	m.sourcesMu.Unlock()

	old := swapListener(m)
	next := m.compute()
	swapListener(old)

	m.valueMu.Lock()
	m.value = next
	m.valueMu.Unlock()

	m.valid.Store(true)
}

var _ sourced = (*Memo[int])(nil)
