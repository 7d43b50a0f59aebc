package backend

import "context"

// Value is a query argument or result. Backends exchange JSON-shaped
// data, so any JSON-encodable Go value works.
type Value = any

// Token is the canonical identity of a (query name, arguments) pair.
// It is produced by the backend's own canonicalization and is opaque to
// everything else: consumers may only compare tokens and use them as map
// keys. Equal (name, args) pairs always yield equal tokens.
type Token string

// Subscription is a live backend subscription for one query.
type Subscription struct {
	// Token identifies the query this subscription tracks.
	Token Token

	// Unsubscribe cancels the subscription. Calling it more than once
	// is the caller's bug; LiveQ guards every call site with sync.Once.
	Unsubscribe func()
}

// SubscribeOptions tunes a Subscribe call.
type SubscribeOptions struct {
	// Journal resumes a paginated query from a journal returned by a
	// previous subscription, when the backend supports it.
	Journal string
}

// MutationOptions tunes a Mutation call.
type MutationOptions struct {
	// Optimistic applies a local update against buffered query results
	// before the mutation round-trips. The set callback writes a result
	// for (name, args) and delivers the matching transition, exactly as
	// a server push would.
	Optimistic func(set func(name string, args Value, value Value))
}

// AuthTokenFetcher returns a fresh authentication token. forceRefresh
// asks the fetcher to bypass any cached token.
type AuthTokenFetcher func(ctx context.Context, forceRefresh bool) (string, error)

// Backend is the full capability set LiveQ consumes. Implementations
// must make LocalQueryResult a synchronous, non-blocking read that is
// race-free with respect to their own network I/O, and must invoke the
// OnTransition callback from a single event loop (run-to-completion per
// batch).
type Backend interface {
	// Subscribe opens a subscription for (name, args) and returns its
	// canonical token. Errors propagate to the caller unchanged.
	Subscribe(name string, args Value, opts SubscribeOptions) (Subscription, error)

	// LocalQueryResult returns the locally buffered result for
	// (name, args). ok is false when no result has arrived yet or the
	// subscription is gone.
	LocalQueryResult(name string, args Value) (result Value, ok bool)

	// Action runs a remote action to completion.
	Action(ctx context.Context, name string, args Value) (Value, error)

	// Mutation runs a remote mutation to completion.
	Mutation(ctx context.Context, name string, args Value, opts MutationOptions) (Value, error)

	// SetAuth installs the token fetcher. onChange reports the resulting
	// authentication state; it may be invoked again later whenever the
	// backend re-validates.
	SetAuth(fetch AuthTokenFetcher, onChange func(authenticated bool))

	// ClearAuth removes any installed token fetcher.
	ClearAuth()

	// OnTransition registers the single transition callback, wired once
	// at client construction. The callback receives the batch of tokens
	// whose results changed and must not block.
	OnTransition(fn func(tokens []Token))
}
