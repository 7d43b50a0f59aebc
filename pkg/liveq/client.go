package liveq

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/liveq-dev/liveq/pkg/backend"
	"github.com/liveq-dev/liveq/pkg/signals"
)

// DebugMode enables debug logging throughout the liveq package.
// Set at startup; not meant to change during runtime.
var DebugMode bool

// AuthState is the tri-state authentication signal: Unknown until the
// backend reports anything, then Authenticated or Unauthenticated.
type AuthState int

const (
	AuthUnknown AuthState = iota
	AuthAuthenticated
	AuthUnauthenticated
)

// String returns a human-readable name for the auth state.
func (s AuthState) String() string {
	switch s {
	case AuthAuthenticated:
		return "authenticated"
	case AuthUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Client bridges a reactive-query backend with reactive cells. One
// Client owns one registry; create it once and share it.
type Client struct {
	backend backend.Backend
	reg     *registry
	obs     Observer
	timeout time.Duration

	authenticated *signals.Signal[AuthState]

	closed atomic.Bool
}

// New wires a client to a backend. The client registers itself as the
// backend's single transition callback; nothing else may claim it.
func New(b backend.Backend, opts ...Option) *Client {
	o := Options{Timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}

	obs := o.observer
	if obs == nil {
		obs = nopObserver{}
	}

	c := &Client{
		backend:       b,
		reg:           newRegistry(),
		obs:           obs,
		timeout:       o.Timeout,
		authenticated: signals.New(AuthUnknown),
	}
	b.OnTransition(c.dispatchTransition)
	return c
}

// dispatchTransition is the transition dispatcher: the single callback
// the backend invokes with a batch of changed tokens. It deduplicates
// the batch and refreshes every matching cell before returning, so the
// whole batch lands as one consistent snapshot. Refreshing is a
// synchronous read of the backend's buffered local state; nothing here
// blocks.
func (c *Client) dispatchTransition(tokens []Token) {
	if len(tokens) == 0 || c.closed.Load() {
		return
	}

	unique := mapset.NewThreadUnsafeSet(tokens...).ToSlice()
	c.reg.notify(unique)
	c.obs.TransitionDelivered(len(unique))

	if DebugMode {
		log.Printf("liveq: transition delivered, %d token(s)", len(unique))
	}
}

// QuerySignal returns the live cell for (name, args), deduplicated by
// token. The backend subscription is opened first — identity comes from
// the subscribe round-trip — and collapsed onto an existing cell when
// the token is already live. Backend failures propagate unchanged.
//
// The returned cell carries no reference yet; call Subscribe to hold it.
func (c *Client) QuerySignal(name string, args Value, opts ...Option) (*Cell, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	o := c.callOptions(opts)

	sub, err := c.backend.Subscribe(name, args, o.subscribeOptions())
	if err != nil {
		return nil, err
	}

	cell, created := c.reg.getOrCreate(c, sub, name, args)
	if !created {
		c.obs.CellCollapsed(name, sub.Token)
		return cell, nil
	}
	c.obs.CellCreated(name, sub.Token)

	// A result buffered before this subscription counts as an immediate
	// transition, so the loaded flag still only ever flips on the notify
	// path.
	if _, ok := c.backend.LocalQueryResult(name, args); ok {
		c.dispatchTransition([]Token{sub.Token})
	}
	return cell, nil
}

// Query is the one-shot convenience: subscribe, wait for the first load
// through the sync bridge, release. When this call held the only
// reference, the release tears the cell down again.
func (c *Client) Query(ctx context.Context, name string, args Value, opts ...Option) (Value, error) {
	cell, err := c.QuerySignal(name, args, opts...)
	if err != nil {
		return nil, err
	}
	release := cell.Subscribe(nil)
	defer release()

	return cell.Sync(ctx, opts...)
}

// Mutation runs a remote mutation. Backend failures propagate unchanged.
// When ctx carries no deadline the client timeout applies.
func (c *Client) Mutation(ctx context.Context, name string, args Value, opts ...Option) (Value, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	o := c.callOptions(opts)

	ctx, cancel := c.withDeadline(ctx, o)
	defer cancel()
	return c.backend.Mutation(ctx, name, args, o.mutationOptions())
}

// Action runs a remote action. Backend failures propagate unchanged.
// When ctx carries no deadline the client timeout applies.
func (c *Client) Action(ctx context.Context, name string, args Value, opts ...Option) (Value, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	o := c.callOptions(opts)

	ctx, cancel := c.withDeadline(ctx, o)
	defer cancel()
	return c.backend.Action(ctx, name, args)
}

// SetAuth installs fetch as the backend's token fetcher. The backend's
// reports drive the Authenticated signal.
func (c *Client) SetAuth(fetch backend.AuthTokenFetcher) {
	c.backend.SetAuth(fetch, func(authenticated bool) {
		if authenticated {
			c.authenticated.Set(AuthAuthenticated)
		} else {
			c.authenticated.Set(AuthUnauthenticated)
		}
	})
}

// ClearAuth removes the token fetcher and resets the Authenticated
// signal to AuthUnknown.
func (c *Client) ClearAuth() {
	c.backend.ClearAuth()
	c.authenticated.Set(AuthUnknown)
}

// Authenticated returns the tri-state auth cell. Read-only for callers;
// the backend's auth reports drive it.
func (c *Client) Authenticated() *signals.Signal[AuthState] {
	return c.authenticated
}

// ActiveCells reports the number of live cells in the registry.
func (c *Client) ActiveCells() int {
	return c.reg.size()
}

// Close tears down every live cell and rejects further query-path calls
// with ErrClientClosed. Idempotent.
func (c *Client) Close() {
	if c.closed.Swap(true) {
		return
	}
	c.reg.destroyAll()
}

// withDeadline applies the resolved timeout when ctx has no deadline of
// its own.
func (c *Client) withDeadline(ctx context.Context, o Options) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || o.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, o.Timeout)
}
