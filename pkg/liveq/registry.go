package liveq

import (
	"sync"

	"github.com/liveq-dev/liveq/pkg/backend"
	"github.com/liveq-dev/liveq/pkg/signals"
)

// registry is the process-wide map from token to live cell. It upholds
// the one-cell-per-token invariant and owns every cell's lifecycle.
type registry struct {
	mu    sync.Mutex
	cells map[Token]*Cell
}

func newRegistry() *registry {
	return &registry{cells: make(map[Token]*Cell)}
}

// getOrCreate returns the cell for sub.Token, creating it when absent.
// Callers always open a subscription first — identity is only knowable
// after the backend's own subscribe round-trip — so when the token is
// already present the redundant just-opened subscription is released
// immediately: a token never holds two live backend subscriptions.
func (r *registry) getOrCreate(c *Client, sub backend.Subscription, name string, args Value) (cell *Cell, created bool) {
	r.mu.Lock()
	if existing, ok := r.cells[sub.Token]; ok && !existing.isDestroyed() {
		r.mu.Unlock()
		if sub.Unsubscribe != nil {
			sub.Unsubscribe()
		}
		return existing, false
	}

	cell = &Cell{
		name:   name,
		args:   args,
		token:  sub.Token,
		value:  signals.New[Value](nil),
		loaded: signals.New(false),
		unsub:  sub.Unsubscribe,
		client: c,
	}
	r.cells[sub.Token] = cell
	r.mu.Unlock()
	return cell, true
}

// notify marks every live cell among tokens loaded and refreshes it.
// All refreshes happen inside one signal batch, so listeners observing
// several cells changed by the same transition see a consistent
// "all refreshed" snapshot before any of them runs. The only path that
// sets loaded.
func (r *registry) notify(tokens []Token) {
	r.mu.Lock()
	live := make([]*Cell, 0, len(tokens))
	for _, t := range tokens {
		if cell, ok := r.cells[t]; ok {
			live = append(live, cell)
		}
	}
	r.mu.Unlock()

	if len(live) == 0 {
		return
	}

	signals.Batch(func() {
		for _, cell := range live {
			cell.markLoaded()
			cell.Refresh()
		}
	})
}

func (r *registry) retain(c *Cell) {
	c.mu.Lock()
	c.refs++
	c.mu.Unlock()
}

// release drops one reference and tears the cell down when the count
// returns to zero. Callers reach it only through the idempotent release
// capability Subscribe hands out, so a double release never
// double-decrements.
func (r *registry) release(c *Cell) {
	c.mu.Lock()
	if c.refs > 0 {
		c.refs--
	}
	drop := c.refs == 0 && !c.destroyed
	c.mu.Unlock()

	if drop {
		r.teardown(c)
	}
}

// destroy tears down the cell for token regardless of reference count.
func (r *registry) destroy(token Token) {
	r.mu.Lock()
	cell, ok := r.cells[token]
	r.mu.Unlock()
	if ok {
		r.teardown(cell)
	}
}

// teardown cancels the backend subscription exactly once and removes the
// cell from the map. Idempotent.
func (r *registry) teardown(c *Cell) {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	unsub := c.unsub
	c.unsub = nil
	c.mu.Unlock()

	r.mu.Lock()
	if r.cells[c.token] == c {
		delete(r.cells, c.token)
	}
	r.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	c.client.obs.CellDestroyed(c.token)
}

// destroyAll tears down every live cell. Close path.
func (r *registry) destroyAll() {
	r.mu.Lock()
	live := make([]*Cell, 0, len(r.cells))
	for _, cell := range r.cells {
		live = append(live, cell)
	}
	r.mu.Unlock()

	for _, cell := range live {
		r.teardown(cell)
	}
}

func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cells)
}

func (c *Cell) isDestroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}
