package liveq

import "time"

// SyncOutcome classifies how a Sync call finished.
type SyncOutcome string

const (
	// SyncHit means the cell was already loaded and resolved immediately.
	SyncHit SyncOutcome = "hit"

	// SyncLoaded means the call waited and the first load arrived in time.
	SyncLoaded SyncOutcome = "loaded"

	// SyncTimeout means the deadline fired before the first load.
	SyncTimeout SyncOutcome = "timeout"

	// SyncCanceled means the caller's context ended the wait.
	SyncCanceled SyncOutcome = "canceled"
)

// Observer receives lifecycle events from the client. Implementations
// must not block: every callback runs synchronously inside registry or
// dispatcher operations. The instrument package provides a Prometheus
// implementation.
type Observer interface {
	// CellCreated fires when a token gets its cell.
	CellCreated(name string, token Token)

	// CellCollapsed fires when a duplicate subscription was folded into
	// an existing cell.
	CellCollapsed(name string, token Token)

	// CellDestroyed fires once per cell teardown.
	CellDestroyed(token Token)

	// TransitionDelivered fires per dispatched batch with the number of
	// distinct tokens it carried.
	TransitionDelivered(tokens int)

	// SyncDone fires when a Sync call finishes, with its outcome and
	// elapsed wait.
	SyncDone(outcome SyncOutcome, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) CellCreated(string, Token)           {}
func (nopObserver) CellCollapsed(string, Token)         {}
func (nopObserver) CellDestroyed(Token)                 {}
func (nopObserver) TransitionDelivered(int)             {}
func (nopObserver) SyncDone(SyncOutcome, time.Duration) {}
