package signals

import (
	"reflect"
	"sync"
)

// broadcaster provides type-erased subscriber management. It is embedded
// in Signal[T] and Memo[T] so both share the same subscription logic.
type broadcaster struct {
	id uint64

	subs []Listener
	mu   sync.RWMutex
}

// attach subscribes a listener, deduplicating by ID.
func (b *broadcaster) attach(l Listener) {
	if l == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	lid := l.ID()
	for _, s := range b.subs {
		if s.ID() == lid {
			return
		}
	}
	b.subs = append(b.subs, l)
}

// detach removes a listener. Order of subs is not meaningful, so the
// removed entry is swapped with the last.
func (b *broadcaster) detach(l Listener) {
	if l == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	lid := l.ID()
	for i, s := range b.subs {
		if s.ID() == lid {
			b.subs[i] = b.subs[len(b.subs)-1]
			b.subs = b.subs[:len(b.subs)-1]
			return
		}
	}
}

// dirtyAll notifies every subscriber. Subscribers are copied out first
// so no lock is held while listeners run. Inside a batch the
// notifications queue instead and fire once at batch completion.
func (b *broadcaster) dirtyAll() {
	b.mu.RLock()
	subs := make([]Listener, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	st := currentState()
	if st.batchDepth > 0 {
		st.pending = append(st.pending, subs...)
		return
	}

	for _, s := range subs {
		s.MarkDirty()
	}
}

// track subscribes the goroutine's current listener, if any, and records
// this broadcaster as one of the listener's sources for later cleanup.
func (b *broadcaster) track() {
	l := currentListener()
	if l == nil {
		return
	}
	b.attach(l)
	if sl, ok := l.(sourced); ok {
		sl.addSource(b)
	}
}

// sourced is implemented by listeners (memos, effects) that re-collect
// their dependency set on every run and need to detach from old sources.
type sourced interface {
	Listener
	addSource(b *broadcaster)
}

// Signal is a reactive value container. Reading it inside a tracked
// context subscribes the current listener to changes.
type Signal[T any] struct {
	base broadcaster

	value T
	mu    sync.RWMutex

	// equal decides whether a Set actually changed the value.
	// nil means Equal (== where comparable, reflect.DeepEqual otherwise).
	equal func(T, T) bool
}

// New creates a signal holding initial.
func New[T any](initial T) *Signal[T] {
	return &Signal[T]{
		base:  broadcaster{id: nextID()},
		value: initial,
	}
}

// Get returns the current value and subscribes the current listener.
func (s *Signal[T]) Get() T {
	s.mu.RLock()
	v := s.value
	s.mu.RUnlock()

	// Track after releasing the value lock to avoid lock-order trouble
	// when listeners re-enter the signal.
	s.base.track()
	return v
}

// Peek returns the current value without subscribing.
func (s *Signal[T]) Peek() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set stores value and notifies subscribers when it differs from the
// current value under the signal's equality function.
func (s *Signal[T]) Set(value T) {
	s.mu.Lock()
	changed := !s.eq(s.value, value)
	if changed {
		s.value = value
	}
	s.mu.Unlock()

	if changed {
		s.base.dirtyAll()
	}
}

// Update atomically transforms the current value with fn.
func (s *Signal[T]) Update(fn func(T) T) {
	s.mu.Lock()
	next := fn(s.value)
	changed := !s.eq(s.value, next)
	if changed {
		s.value = next
	}
	s.mu.Unlock()

	if changed {
		s.base.dirtyAll()
	}
}

// Watch registers fn to run whenever the signal's value changes, without
// needing a tracked context. The returned unsubscribe is idempotent.
func (s *Signal[T]) Watch(fn func()) func() {
	w := newWatcher(fn)
	s.base.attach(w)
	return w.stopFunc(&s.base)
}

// WithEquals configures a custom equality function, for types where
// reflect.DeepEqual is too expensive or has the wrong semantics.
func (s *Signal[T]) WithEquals(fn func(T, T) bool) *Signal[T] {
	s.equal = fn
	return s
}

// ID returns the unique identifier for this signal.
func (s *Signal[T]) ID() uint64 { return s.base.id }

func (s *Signal[T]) eq(a, b T) bool {
	if s.equal != nil {
		return s.equal(a, b)
	}
	return Equal(a, b)
}

// Equal is the default change check: == for comparable dynamic types,
// reflect.DeepEqual for everything else.
func Equal[T any](a, b T) bool {
	av, bv := any(a), any(b)
	if av == nil || bv == nil {
		return av == nil && bv == nil
	}
	if reflect.TypeOf(av).Comparable() && reflect.TypeOf(bv).Comparable() {
		return av == bv
	}
	return reflect.DeepEqual(av, bv)
}
