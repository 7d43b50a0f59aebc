package liveq

import (
	"time"

	"github.com/liveq-dev/liveq/pkg/backend"
)

// DefaultTimeout is the default deadline for every await-style
// operation: Sync, Query, and the context applied to Mutation and
// Action when the caller set none.
const DefaultTimeout = 10 * time.Second

// Options collects the tunables accepted by New and by individual calls.
// Per-call options override the client defaults for that call only.
type Options struct {
	// Timeout bounds await-style operations. WithTimeout(0) is an
	// already-expired deadline, not "no timeout".
	Timeout    time.Duration
	timeoutSet bool

	// Journal resumes a paginated query from a previously returned
	// journal. Subscribe-path calls only.
	Journal string

	// Optimistic applies a local update before a mutation round-trips.
	// Mutation calls only.
	Optimistic func(set func(name string, args Value, value Value))

	observer Observer
}

// Option configures a Client or a single call.
type Option func(*Options)

// WithTimeout overrides the timeout for await-style operations.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
		o.timeoutSet = true
	}
}

// WithJournal resumes a paginated query from a journal.
func WithJournal(journal string) Option {
	return func(o *Options) {
		o.Journal = journal
	}
}

// WithOptimistic attaches an optimistic update to a Mutation call.
func WithOptimistic(fn func(set func(name string, args Value, value Value))) Option {
	return func(o *Options) {
		o.Optimistic = fn
	}
}

// WithObserver installs an Observer on the client. Construction-time
// only; ignored on individual calls.
func WithObserver(obs Observer) Option {
	return func(o *Options) {
		o.observer = obs
	}
}

// callOptions resolves per-call options against the client defaults.
func (c *Client) callOptions(opts []Option) Options {
	o := Options{}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.timeoutSet {
		o.Timeout = c.timeout
	}
	return o
}

func (o Options) mutationOptions() backend.MutationOptions {
	return backend.MutationOptions{Optimistic: o.Optimistic}
}

func (o Options) subscribeOptions() backend.SubscribeOptions {
	return backend.SubscribeOptions{Journal: o.Journal}
}
