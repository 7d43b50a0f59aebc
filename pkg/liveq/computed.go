package liveq

import (
	"context"
	"sync"

	"github.com/liveq-dev/liveq/pkg/signals"
)

// Computed is a derived cell with no backend subscription of its own: it
// holds a reference to whichever base cell its argument function
// currently resolves to, and re-derives that reference whenever the
// function's reactive inputs change. Readers see a continuous stream of
// updates across re-subscription boundaries — loaded does not reset when
// the new base cell has already been loaded by someone else.
type Computed struct {
	client *Client
	name   string

	// current holds the base cell the argument derivation resolved to
	// last. A signal, so projections are themselves reactive across
	// base-cell switches.
	current *signals.Signal[*Cell]

	// lastErr holds the error of the most recent re-subscribe, nil when
	// it succeeded.
	lastErr *signals.Signal[error]

	mu          sync.Mutex
	releaseHold func()
	released    bool
	effect      *signals.Effect
}

// QueryComputed builds a derived cell whose query arguments come from
// argsFn. The function is reactive: every signal or memo it reads
// becomes a dependency, and when any of them changes the composer
// resolves the new (name, args) pair through the registry, takes a
// reference on the resulting base cell, and drops its hold on the
// previous one. Flipping between identical argument sets is cheap — the
// registry collapses them onto the same cell.
//
// Release the composer when done; it holds a reference on its current
// base cell.
func (c *Client) QueryComputed(name string, argsFn func() Value, opts ...Option) *Computed {
	q := &Computed{
		client:  c,
		name:    name,
		current: signals.New[*Cell](nil),
		lastErr: signals.New[error](nil),
	}

	q.effect = signals.NewEffect(func() signals.Cleanup {
		args := argsFn()

		var cell *Cell
		var err error
		signals.Untracked(func() {
			cell, err = c.QuerySignal(name, args, opts...)
		})
		if err != nil {
			q.lastErr.Set(err)
			return nil
		}

		hold := cell.Subscribe(nil)

		q.mu.Lock()
		if q.released {
			// Lost the race with Release; give the fresh hold back.
			q.mu.Unlock()
			hold()
			return nil
		}
		prev := q.releaseHold
		q.releaseHold = hold
		q.mu.Unlock()

		q.lastErr.Set(nil)
		q.current.Set(cell)

		// Release the previous hold only after the new one is in place,
		// so switching to the same token does not tear the shared cell
		// down in between.
		if prev != nil {
			prev()
		}
		return nil
	})

	return q
}

// Value projects the current base cell's value. Tracked: readers re-run
// both when the base cell's value changes and when the base cell itself
// switches.
func (q *Computed) Value() Value {
	if cell := q.current.Get(); cell != nil {
		return cell.Value()
	}
	return nil
}

// Loaded mirrors the current base cell's monotonic loaded flag. It goes
// false after a switch only when the new base cell has genuinely never
// loaded.
func (q *Computed) Loaded() bool {
	if cell := q.current.Get(); cell != nil {
		return cell.Loaded()
	}
	return false
}

// Err reports the most recent re-subscribe failure, nil when the current
// base cell is live.
func (q *Computed) Err() error { return q.lastErr.Get() }

// Cell returns the currently-referenced base cell (tracked read).
func (q *Computed) Cell() *Cell { return q.current.Get() }

// Refresh refreshes the current base cell.
func (q *Computed) Refresh() {
	if cell := q.current.Peek(); cell != nil {
		cell.Refresh()
	}
}

// Destroy destroys the currently-referenced base cell only. Base cells
// referenced earlier are not retained and not affected.
func (q *Computed) Destroy() {
	if cell := q.current.Peek(); cell != nil {
		cell.Destroy()
	}
}

// Sync forwards to the current base cell's Sync.
func (q *Computed) Sync(ctx context.Context, opts ...Option) (Value, error) {
	cell := q.current.Peek()
	if cell == nil {
		if err := q.lastErr.Peek(); err != nil {
			return nil, err
		}
		return nil, ErrNoBaseCell
	}
	return cell.Sync(ctx, opts...)
}

// Watch runs fn whenever the projected value, loaded flag, or the
// referenced base cell changes. The first derivation run is skipped so
// fn only reports changes. The returned stop is idempotent.
func (q *Computed) Watch(fn func()) (stop func()) {
	first := true
	eff := signals.NewEffect(func() signals.Cleanup {
		_ = q.Value()
		_ = q.Loaded()
		if first {
			first = false
			return nil
		}
		fn()
		return nil
	})

	var once sync.Once
	return func() {
		once.Do(eff.Dispose)
	}
}

// Release disposes the argument derivation and drops the hold on the
// current base cell. The composer stops tracking afterwards; projections
// keep reading the last referenced cell's stale state.
func (q *Computed) Release() {
	q.mu.Lock()
	if q.released {
		q.mu.Unlock()
		return
	}
	q.released = true
	hold := q.releaseHold
	q.releaseHold = nil
	eff := q.effect
	q.mu.Unlock()

	if eff != nil {
		eff.Dispose()
	}
	if hold != nil {
		hold()
	}
}
