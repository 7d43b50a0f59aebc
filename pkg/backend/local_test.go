package backend

import (
	"context"
	"errors"
	"testing"
)

func TestCanonicalTokenDeterministic(t *testing.T) {
	a := CanonicalToken("messages:list", map[string]any{"channel": "general", "limit": 10})
	b := CanonicalToken("messages:list", map[string]any{"limit": 10, "channel": "general"})
	if a != b {
		t.Errorf("equal args produced different tokens: %q vs %q", a, b)
	}

	c := CanonicalToken("messages:list", map[string]any{"channel": "random", "limit": 10})
	if a == c {
		t.Errorf("distinct args produced identical token %q", a)
	}

	d := CanonicalToken("messages:count", map[string]any{"channel": "general", "limit": 10})
	if a == d {
		t.Errorf("distinct names produced identical token %q", a)
	}
}

func TestLocalSubscribeCounts(t *testing.T) {
	l := NewLocal()
	args := map[string]any{"id": 1}

	s1, err := l.Subscribe("q", args, SubscribeOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s2, err := l.Subscribe("q", args, SubscribeOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s1.Token != s2.Token {
		t.Fatalf("same query produced different tokens: %q vs %q", s1.Token, s2.Token)
	}
	if got := l.Subscribers("q", args); got != 2 {
		t.Errorf("expected 2 subscribers, got %d", got)
	}

	s1.Unsubscribe()
	if got := l.Subscribers("q", args); got != 1 {
		t.Errorf("expected 1 subscriber, got %d", got)
	}

	s2.Unsubscribe()
	if got := l.Subscribers("q", args); got != 0 {
		t.Errorf("expected 0 subscribers, got %d", got)
	}
}

func TestLocalResultDroppedWithLastSubscription(t *testing.T) {
	l := NewLocal()
	args := map[string]any{"id": 1}

	sub, _ := l.Subscribe("q", args, SubscribeOptions{})
	l.Publish("q", args, "result")

	if _, ok := l.LocalQueryResult("q", args); !ok {
		t.Fatal("expected buffered result while subscribed")
	}

	sub.Unsubscribe()
	if _, ok := l.LocalQueryResult("q", args); ok {
		t.Error("buffered result survived the last unsubscribe")
	}
}

func TestLocalPublishDeliversTransition(t *testing.T) {
	l := NewLocal()
	args := map[string]any{"id": 1}

	var batches [][]Token
	l.OnTransition(func(tokens []Token) {
		batches = append(batches, tokens)
	})

	l.Publish("q", args, "v1")

	if len(batches) != 1 {
		t.Fatalf("expected 1 transition, got %d", len(batches))
	}
	want := CanonicalToken("q", args)
	if len(batches[0]) != 1 || batches[0][0] != want {
		t.Errorf("transition carried %v, want [%s]", batches[0], want)
	}
}

func TestLocalPublishAllBatches(t *testing.T) {
	l := NewLocal()

	var got []Token
	l.OnTransition(func(tokens []Token) {
		got = append(got, tokens...)
	})

	t1 := CanonicalToken("q", 1)
	t2 := CanonicalToken("q", 2)
	l.PublishAll(map[Token]Value{t1: "a", t2: "b"})

	if len(got) != 2 {
		t.Errorf("expected 2 tokens in one batch, got %v", got)
	}
}

func TestLocalMutation(t *testing.T) {
	l := NewLocal()
	errBoom := errors.New("boom")

	l.RegisterMutation("items:add", func(_ context.Context, args Value) (Value, error) {
		return args, nil
	})
	l.RegisterMutation("items:fail", func(_ context.Context, _ Value) (Value, error) {
		return nil, errBoom
	})

	v, err := l.Mutation(context.Background(), "items:add", "payload", MutationOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "payload" {
		t.Errorf("expected payload back, got %v", v)
	}

	// Failures propagate unchanged.
	if _, err := l.Mutation(context.Background(), "items:fail", nil, MutationOptions{}); !errors.Is(err, errBoom) {
		t.Errorf("expected boom unchanged, got %v", err)
	}

	if _, err := l.Mutation(context.Background(), "missing", nil, MutationOptions{}); err == nil {
		t.Error("expected error for unregistered mutation")
	}
}

func TestLocalMutationOptimistic(t *testing.T) {
	l := NewLocal()
	args := map[string]any{"id": 7}
	sub, _ := l.Subscribe("items:get", args, SubscribeOptions{})
	defer sub.Unsubscribe()

	var transitions int
	l.OnTransition(func([]Token) { transitions++ })

	l.RegisterMutation("items:touch", func(_ context.Context, _ Value) (Value, error) {
		return nil, nil
	})

	opts := MutationOptions{Optimistic: func(set func(string, Value, Value)) {
		set("items:get", args, "optimistic")
	}}
	if _, err := l.Mutation(context.Background(), "items:touch", nil, opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if v, ok := l.LocalQueryResult("items:get", args); !ok || v != "optimistic" {
		t.Errorf("optimistic result missing, got %v (ok=%v)", v, ok)
	}
	if transitions != 1 {
		t.Errorf("expected 1 optimistic transition, got %d", transitions)
	}
}

func TestLocalAction(t *testing.T) {
	l := NewLocal()
	l.RegisterAction("ping", func(_ context.Context, _ Value) (Value, error) {
		return "pong", nil
	})

	v, err := l.Action(context.Background(), "ping", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "pong" {
		t.Errorf("expected pong, got %v", v)
	}

	if _, err := l.Action(context.Background(), "missing", nil); err == nil {
		t.Error("expected error for unregistered action")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Action(ctx, "ping", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestLocalSetAuth(t *testing.T) {
	l := NewLocal()

	var reports []bool
	onChange := func(ok bool) { reports = append(reports, ok) }

	l.SetAuth(func(_ context.Context, _ bool) (string, error) {
		return "token", nil
	}, onChange)

	l.SetAuth(func(_ context.Context, _ bool) (string, error) {
		return "", errors.New("fetch failed")
	}, onChange)

	l.SetAuth(nil, onChange)

	want := []bool{true, false, false}
	if len(reports) != len(want) {
		t.Fatalf("expected %d reports, got %v", len(want), reports)
	}
	for i := range want {
		if reports[i] != want[i] {
			t.Errorf("report %d = %v, want %v", i, reports[i], want[i])
		}
	}
}
