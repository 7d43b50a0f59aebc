package liveq

import (
	"sync"

	"github.com/liveq-dev/liveq/pkg/backend"
	"github.com/liveq-dev/liveq/pkg/signals"
)

// Value is a query argument or result, as exchanged with the backend.
type Value = backend.Value

// Token is the canonical identity of a (query name, arguments) pair.
// Opaque: the core only compares tokens and keys maps with them.
type Token = backend.Token

// Cell is the shared unit of live query state: the last known result, a
// monotonic loaded flag, a reference count, and the capability to cancel
// the backend subscription. Cells are owned exclusively by the client's
// registry; callers hold handles and express interest through Subscribe
// and Destroy.
type Cell struct {
	name  string
	args  Value
	token Token

	// value holds the last known result; nil before the first load.
	value *signals.Signal[Value]

	// loaded flips to true on the first server-confirmed value and never
	// back. Only the registry's notify path writes it.
	loaded *signals.Signal[bool]

	mu        sync.Mutex
	refs      int
	destroyed bool
	unsub     func()

	client *Client
}

// Token returns the cell's canonical query token.
func (c *Cell) Token() Token { return c.token }

// Name returns the logical query name.
func (c *Cell) Name() string { return c.name }

// Args returns the query arguments the cell was created with.
func (c *Cell) Args() Value { return c.args }

// Value returns the last known result, subscribing the current reactive
// listener. Nil before the first load.
func (c *Cell) Value() Value { return c.value.Get() }

// Peek returns the last known result without subscribing.
func (c *Cell) Peek() Value { return c.value.Peek() }

// Loaded reports whether at least one server-confirmed value has
// arrived, subscribing the current reactive listener. Monotonic: once
// observed true it stays true for the cell's lifetime.
func (c *Cell) Loaded() bool { return c.loaded.Get() }

// Refresh pulls the backend's buffered result for this query into the
// cell. After Destroy it still works against whatever local state
// remains, but no further backend-driven updates ever arrive — destroyed
// cells do not auto-resubscribe.
func (c *Cell) Refresh() {
	if v, ok := c.client.backend.LocalQueryResult(c.name, c.args); ok {
		c.value.Set(v)
	}
}

// Subscribe registers interest in the cell: the reference count goes up
// by one and fn, when non-nil, runs on every value or loaded change. The
// returned release is idempotent; the first call drops the reference and
// detaches fn, and when the count reaches zero the cell is torn down.
//
// Reference counting is explicit. A release that is never called keeps
// the cell and its backend subscription alive until Destroy or Close;
// there is no garbage-collected backstop.
func (c *Cell) Subscribe(fn func()) (release func()) {
	c.client.reg.retain(c)

	var stopValue, stopLoaded func()
	if fn != nil {
		stopValue = c.value.Watch(fn)
		stopLoaded = c.loaded.Watch(fn)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if fn != nil {
				stopValue()
				stopLoaded()
			}
			c.client.reg.release(c)
		})
	}
}

// Destroy tears the cell down unconditionally, regardless of reference
// count: the backend subscription is cancelled and the cell leaves the
// registry. Handles kept by callers remain usable for reads and Refresh
// against stale local state.
func (c *Cell) Destroy() {
	c.client.reg.teardown(c)
}

// RefCount reports the number of active external subscribers.
func (c *Cell) RefCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refs
}

// markLoaded is the registry's notify path setting the monotonic flag.
func (c *Cell) markLoaded() {
	c.loaded.Set(true)
}
