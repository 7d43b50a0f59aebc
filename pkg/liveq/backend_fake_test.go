package liveq

import (
	"context"
	"fmt"
	"sync"

	"github.com/liveq-dev/liveq/pkg/backend"
)

// fakeBackend counts every subscribe and unsubscribe so tests can verify
// the registry's deduplication and teardown behavior exactly.
type fakeBackend struct {
	mu      sync.Mutex
	opens   int
	unsubs  map[Token]int
	results map[Token]Value

	fire func([]Token)

	subscribeErr error
	mutationFn   func(ctx context.Context, name string, args Value) (Value, error)
	actionFn     func(ctx context.Context, name string, args Value) (Value, error)

	authFetch  backend.AuthTokenFetcher
	authChange func(bool)
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		unsubs:  make(map[Token]int),
		results: make(map[Token]Value),
	}
}

func fakeToken(name string, args Value) Token {
	// Go prints maps with sorted keys, so this is deterministic.
	return Token(fmt.Sprintf("%s|%v", name, args))
}

func (f *fakeBackend) Subscribe(name string, args Value, _ backend.SubscribeOptions) (backend.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.subscribeErr != nil {
		return backend.Subscription{}, f.subscribeErr
	}

	f.opens++
	token := fakeToken(name, args)
	return backend.Subscription{
		Token: token,
		Unsubscribe: func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.unsubs[token]++
		},
	}, nil
}

func (f *fakeBackend) LocalQueryResult(name string, args Value) (Value, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.results[fakeToken(name, args)]
	return v, ok
}

func (f *fakeBackend) Action(ctx context.Context, name string, args Value) (Value, error) {
	if f.actionFn != nil {
		return f.actionFn(ctx, name, args)
	}
	return nil, fmt.Errorf("fake: no action %q", name)
}

func (f *fakeBackend) Mutation(ctx context.Context, name string, args Value, _ backend.MutationOptions) (Value, error) {
	if f.mutationFn != nil {
		return f.mutationFn(ctx, name, args)
	}
	return nil, fmt.Errorf("fake: no mutation %q", name)
}

func (f *fakeBackend) SetAuth(fetch backend.AuthTokenFetcher, onChange func(bool)) {
	f.mu.Lock()
	f.authFetch = fetch
	f.authChange = onChange
	f.mu.Unlock()

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

func (f *fakeBackend) ClearAuth() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authFetch = nil
	f.authChange = nil
}

func (f *fakeBackend) OnTransition(fn func([]Token)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fire = fn
}

// publish buffers a result and delivers its transition, like a server
// push.
func (f *fakeBackend) publish(name string, args Value, result Value) {
	token := fakeToken(name, args)

	f.mu.Lock()
	f.results[token] = result
	fire := f.fire
	f.mu.Unlock()

	if fire != nil {
		fire([]Token{token})
	}
}

// transition delivers a raw token batch without touching results.
func (f *fakeBackend) transition(tokens ...Token) {
	f.mu.Lock()
	fire := f.fire
	f.mu.Unlock()
	if fire != nil {
		fire(tokens)
	}
}

// setResult buffers a result without delivering a transition.
func (f *fakeBackend) setResult(name string, args Value, result Value) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[fakeToken(name, args)] = result
}

func (f *fakeBackend) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

func (f *fakeBackend) unsubCount(name string, args Value) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unsubs[fakeToken(name, args)]
}

var _ backend.Backend = (*fakeBackend)(nil)
