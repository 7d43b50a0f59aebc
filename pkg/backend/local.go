package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Handler implements a Local action or mutation.
type Handler func(ctx context.Context, args Value) (Value, error)

// Local is an in-memory Backend. It keeps the latest result per token,
// counts live subscriptions, and delivers a transition for every
// Publish. Tests, benchmarks and offline development run against it.
type Local struct {
	mu        sync.Mutex
	results   map[Token]Value
	subs      map[Token]int
	actions   map[string]Handler
	mutations map[string]Handler

	onTransition func([]Token)

	fetch        AuthTokenFetcher
	onAuthChange func(bool)
}

// NewLocal creates an empty Local backend.
func NewLocal() *Local {
	return &Local{
		results:   make(map[Token]Value),
		subs:      make(map[Token]int),
		actions:   make(map[string]Handler),
		mutations: make(map[string]Handler),
	}
}

// CanonicalToken derives the token for a (name, args) pair: the query
// name plus an xxhash64 of the JSON encoding of the arguments. JSON
// encoding sorts map keys, so equal argument values hash equally
// regardless of construction order.
func CanonicalToken(name string, args Value) Token {
	payload, err := json.Marshal(args)
	if err != nil {
		// Non-encodable arguments still need a deterministic identity.
		payload = []byte(fmt.Sprintf("%#v", args))
	}

	h := xxhash.New()
	_, _ = h.WriteString(name)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(payload)
	return Token(fmt.Sprintf("%s:%016x", name, h.Sum64()))
}

// Subscribe opens a subscription for (name, args). The Journal option is
// accepted and ignored; Local does not paginate.
func (l *Local) Subscribe(name string, args Value, _ SubscribeOptions) (Subscription, error) {
	token := CanonicalToken(name, args)

	l.mu.Lock()
	l.subs[token]++
	l.mu.Unlock()

	return Subscription{
		Token: token,
		Unsubscribe: func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if n, ok := l.subs[token]; ok {
				if n <= 1 {
					delete(l.subs, token)
					// Nothing watches the query anymore; the buffered
					// result goes with the last subscription.
					delete(l.results, token)
				} else {
					l.subs[token] = n - 1
				}
			}
		},
	}, nil
}

// LocalQueryResult returns the buffered result for (name, args), if any.
func (l *Local) LocalQueryResult(name string, args Value) (Value, bool) {
	token := CanonicalToken(name, args)
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.results[token]
	return v, ok
}

// Publish stores a new result for (name, args) and delivers the matching
// transition, exactly as a server push would.
func (l *Local) Publish(name string, args Value, result Value) {
	token := CanonicalToken(name, args)

	l.mu.Lock()
	l.results[token] = result
	fn := l.onTransition
	l.mu.Unlock()

	if fn != nil {
		fn([]Token{token})
	}
}

// PublishAll stores several results and delivers them as one transition
// batch.
func (l *Local) PublishAll(updates map[Token]Value) {
	l.mu.Lock()
	tokens := make([]Token, 0, len(updates))
	for token, result := range updates {
		l.results[token] = result
		tokens = append(tokens, token)
	}
	fn := l.onTransition
	l.mu.Unlock()

	if fn != nil && len(tokens) > 0 {
		fn(tokens)
	}
}

// RegisterAction installs the handler backing Action calls for name.
func (l *Local) RegisterAction(name string, fn Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.actions[name] = fn
}

// RegisterMutation installs the handler backing Mutation calls for name.
func (l *Local) RegisterMutation(name string, fn Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mutations[name] = fn
}

// Action runs a registered action handler.
func (l *Local) Action(ctx context.Context, name string, args Value) (Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	fn, ok := l.actions[name]
	l.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("backend: no action registered for %q", name)
	}
	return fn(ctx, args)
}

// Mutation runs a registered mutation handler. An optimistic update, if
// present, applies before the handler and delivers its own transitions.
func (l *Local) Mutation(ctx context.Context, name string, args Value, opts MutationOptions) (Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if opts.Optimistic != nil {
		opts.Optimistic(func(qname string, qargs Value, value Value) {
			l.Publish(qname, qargs, value)
		})
	}

	l.mu.Lock()
	fn, ok := l.mutations[name]
	l.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("backend: no mutation registered for %q", name)
	}
	return fn(ctx, args)
}

// SetAuth installs the token fetcher and validates it once immediately:
// a non-empty token without error counts as authenticated.
func (l *Local) SetAuth(fetch AuthTokenFetcher, onChange func(bool)) {
	l.mu.Lock()
	l.fetch = fetch
	l.onAuthChange = onChange
	l.mu.Unlock()

	if onChange == nil {
		return
	}
	if fetch == nil {
		onChange(false)
		return
	}
	token, err := fetch(context.Background(), false)
	onChange(err == nil && token != "")
}

// ClearAuth removes the installed token fetcher.
func (l *Local) ClearAuth() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fetch = nil
	l.onAuthChange = nil
}

// OnTransition registers the single transition callback.
func (l *Local) OnTransition(fn func([]Token)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onTransition = fn
}

// Subscribers reports the live subscription count for (name, args).
// Test and benchmark hook.
func (l *Local) Subscribers(name string, args Value) int {
	token := CanonicalToken(name, args)
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.subs[token]
}

var _ Backend = (*Local)(nil)
