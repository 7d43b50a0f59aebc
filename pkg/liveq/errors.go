package liveq

import "errors"

// ErrSyncTimeout is returned by Sync and Query when a cell does not
// reach its first load within the configured window. It is
// distinguishable from backend failures so callers can retry or show a
// stale-data indicator.
var ErrSyncTimeout = errors.New("liveq: timed out waiting for first load")

// ErrClientClosed is returned by operations on a closed Client.
var ErrClientClosed = errors.New("liveq: client is closed")

// ErrNoBaseCell is returned by Computed.Sync when the composer holds no
// base cell, which happens only after the underlying subscribe failed or
// the composer was released.
var ErrNoBaseCell = errors.New("liveq: computed query has no base cell")
