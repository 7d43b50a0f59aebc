package liveq

import (
	"context"
	"fmt"
	"time"
)

// Sync blocks until the cell has loaded at least once and returns the
// value at that point. A cell that is already loaded resolves
// immediately with the current value, without waiting for a new
// transition.
//
// The wait races against the configured timeout (client default, or
// WithTimeout) and against ctx. On timeout the error wraps
// ErrSyncTimeout; on cancellation it is ctx.Err(). Every exit path stops
// the timer and detaches the internal watcher, so an expired call leaves
// nothing behind. Concurrent Sync calls on one cell are independent:
// each gets its own watcher and timer.
func (c *Cell) Sync(ctx context.Context, opts ...Option) (Value, error) {
	o := c.client.callOptions(opts)
	start := time.Now()

	if c.loaded.Peek() {
		c.client.obs.SyncDone(SyncHit, time.Since(start))
		return c.value.Peek(), nil
	}

	loadedCh := make(chan struct{}, 1)
	stop := c.loaded.Watch(func() {
		if c.loaded.Peek() {
			select {
			case loadedCh <- struct{}{}:
			default:
			}
		}
	})
	defer stop()

	// The flag may have flipped between the first check and the watch
	// registration; re-check so that load is not missed.
	if c.loaded.Peek() {
		c.client.obs.SyncDone(SyncHit, time.Since(start))
		return c.value.Peek(), nil
	}

	timer := time.NewTimer(o.Timeout)
	defer timer.Stop()

	select {
	case <-loadedCh:
		c.client.obs.SyncDone(SyncLoaded, time.Since(start))
		return c.value.Peek(), nil
	case <-timer.C:
		c.client.obs.SyncDone(SyncTimeout, time.Since(start))
		return nil, fmt.Errorf("%w: query %q after %s", ErrSyncTimeout, c.name, o.Timeout)
	case <-ctx.Done():
		c.client.obs.SyncDone(SyncCanceled, time.Since(start))
		return nil, ctx.Err()
	}
}
