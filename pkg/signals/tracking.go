package signals

import (
	"runtime"
	"sync"
)

// trackState holds the reactive bookkeeping for one goroutine: the
// listener currently collecting dependencies and the batch accumulator.
// Keeping it per goroutine lets independent goroutines track without
// interfering, matching how the rest of the module uses signals.
type trackState struct {
	// listener is what is currently collecting dependencies.
	// nil means reads do not subscribe anything.
	listener Listener

	// batchDepth counts nested Batch calls. While > 0, notifications
	// queue in pending instead of firing.
	batchDepth int

	// pending accumulates listeners to notify when the outermost batch
	// completes. Deduplicated by ID before firing.
	pending []Listener
}

// trackStates maps goroutine ID to its trackState.
var trackStates sync.Map

// goroutineID parses the current goroutine's ID out of the runtime
// stack header ("goroutine <id> ..."). Implementation detail; never
// exposed.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

func currentState() *trackState {
	gid := goroutineID()
	if st, ok := trackStates.Load(gid); ok {
		return st.(*trackState)
	}
	st := &trackState{}
	trackStates.Store(gid, st)
	return st
}

func currentListener() Listener {
	return currentState().listener
}

// swapListener installs l as the tracking listener for this goroutine
// and returns the previous one so callers can restore it.
func swapListener(l Listener) Listener {
	st := currentState()
	old := st.listener
	st.listener = l
	return old
}

// WithListener runs fn with l installed as the tracking listener, so
// every signal and memo read inside fn subscribes l.
func WithListener(l Listener, fn func()) {
	old := swapListener(l)
	defer swapListener(old)
	fn()
}

// Untracked runs fn with tracking suspended: signal reads inside fn do
// not subscribe the current listener. For a single read prefer Peek.
func Untracked(fn func()) {
	old := swapListener(nil)
	defer swapListener(old)
	fn()
}
