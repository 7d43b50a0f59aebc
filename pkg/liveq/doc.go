// Package liveq turns a reactive-query backend's push-notification
// stream into deduplicated, reference-counted reactive cells.
//
// A Client owns a registry of cells keyed by the backend's canonical
// query token. Requesting the same (name, args) pair twice yields the
// object-identical *Cell, and never a second live backend subscription:
// the redundant subscription opened by the second caller is released the
// moment the registry collapses it.
//
// Each Cell tracks a monotonic loaded flag: false until the first
// server-confirmed value arrives, true forever after. UI code can branch
// on it directly — show a loading state until loaded, then always show
// the last-known value, even across transient disconnects.
//
//	cell, err := client.QuerySignal("messages:list", map[string]any{"channel": "general"})
//	if err != nil { ... }
//	release := cell.Subscribe(func() { rerender() })
//	defer release()
//
// Query is the one-shot form: subscribe, wait for the first load (10s
// default timeout), return the value, release:
//
//	v, err := client.Query(ctx, "messages:list", args)
//
// QueryComputed derives the query arguments from other reactive state
// and re-subscribes transparently whenever they change:
//
//	channel := signals.New("general")
//	q := client.QueryComputed("messages:list", func() liveq.Value {
//	    return map[string]any{"channel": channel.Get()}
//	})
//
// Lifecycle: a cell is created on the first request for its token and
// torn down (backend subscription cancelled, removed from the registry)
// when its reference count returns to zero, or unconditionally via
// Destroy. A destroyed cell's Refresh still works against whatever local
// state remains, but no further backend-driven updates ever arrive —
// destroyed cells do not auto-resubscribe. Explicit release is the
// primary lifecycle mechanism; nothing here relies on garbage collection
// for timely teardown.
package liveq
