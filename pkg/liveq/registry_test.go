package liveq

import (
	"testing"
)

func TestQuerySignalDeduplicates(t *testing.T) {
	f := newFakeBackend()
	c := New(f)
	args := map[string]any{"channel": "general"}

	cell1, err := c.QuerySignal("messages:list", args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cell2, err := c.QuerySignal("messages:list", args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cell1 != cell2 {
		t.Fatal("same (name, args) produced distinct cells")
	}
	if got := c.ActiveCells(); got != 1 {
		t.Errorf("expected 1 live cell, got %d", got)
	}

	// Both calls opened a backend subscription; the redundant one was
	// released the moment the registry collapsed it.
	if got := f.openCount(); got != 2 {
		t.Errorf("expected 2 backend subscribes, got %d", got)
	}
	if got := f.unsubCount("messages:list", args); got != 1 {
		t.Errorf("expected exactly 1 redundant unsubscribe, got %d", got)
	}
}

func TestQuerySignalDistinctArgs(t *testing.T) {
	f := newFakeBackend()
	c := New(f)

	cell1, _ := c.QuerySignal("q", map[string]any{"id": 1})
	cell2, _ := c.QuerySignal("q", map[string]any{"id": 2})

	if cell1 == cell2 {
		t.Fatal("distinct args shared a cell")
	}
	if got := c.ActiveCells(); got != 2 {
		t.Errorf("expected 2 live cells, got %d", got)
	}
}

func TestLoadedMonotonic(t *testing.T) {
	f := newFakeBackend()
	c := New(f)
	args := map[string]any{"id": 1}

	cell, _ := c.QuerySignal("q", args)
	if cell.Loaded() {
		t.Fatal("cell loaded before any transition")
	}

	sawFalse := false
	stop := cell.loaded.Watch(func() {
		if !cell.loaded.Peek() {
			sawFalse = true
		}
	})
	defer stop()

	for i := 0; i < 5; i++ {
		f.publish("q", args, i)
		if !cell.Loaded() {
			t.Fatalf("loaded regressed after transition %d", i)
		}
	}
	if sawFalse {
		t.Error("loaded observed false after first load")
	}
	if got := cell.Peek(); got != 4 {
		t.Errorf("expected last value 4, got %v", got)
	}
}

func TestReferenceCounting(t *testing.T) {
	f := newFakeBackend()
	c := New(f)
	args := map[string]any{"id": 1}

	cell, _ := c.QuerySignal("q", args)

	r1 := cell.Subscribe(nil)
	r2 := cell.Subscribe(nil)
	r3 := cell.Subscribe(nil)
	if got := cell.RefCount(); got != 3 {
		t.Fatalf("expected refcount 3, got %d", got)
	}

	r1()
	r2()
	if got := f.unsubCount("q", args); got != 0 {
		t.Fatalf("cell torn down with a live reference, %d unsubscribes", got)
	}
	if got := c.ActiveCells(); got != 1 {
		t.Errorf("expected cell alive, got %d live cells", got)
	}

	r3()
	if got := f.unsubCount("q", args); got != 1 {
		t.Errorf("expected exactly 1 backend unsubscribe, got %d", got)
	}
	if got := c.ActiveCells(); got != 0 {
		t.Errorf("expected cell torn down, got %d live cells", got)
	}

	// Double release is a no-op.
	r3()
	r1()
	if got := f.unsubCount("q", args); got != 1 {
		t.Errorf("double release double-unsubscribed, got %d", got)
	}
}

func TestSubscribeNotifies(t *testing.T) {
	f := newFakeBackend()
	c := New(f)
	args := map[string]any{"id": 1}

	cell, _ := c.QuerySignal("q", args)

	fired := 0
	release := cell.Subscribe(func() { fired++ })
	defer release()

	f.publish("q", args, "v1")
	if fired == 0 {
		t.Error("subscriber not notified on first load")
	}

	before := fired
	f.publish("q", args, "v2")
	if fired <= before {
		t.Error("subscriber not notified on refresh")
	}
}

func TestDestroyUnconditional(t *testing.T) {
	f := newFakeBackend()
	c := New(f)
	args := map[string]any{"id": 1}

	cell, _ := c.QuerySignal("q", args)
	release := cell.Subscribe(nil)
	f.publish("q", args, "v1")

	cell.Destroy()
	if got := f.unsubCount("q", args); got != 1 {
		t.Fatalf("expected 1 backend unsubscribe after destroy, got %d", got)
	}
	if got := c.ActiveCells(); got != 0 {
		t.Errorf("destroyed cell still registered, %d live cells", got)
	}

	// The remaining reference releases without a second unsubscribe.
	release()
	if got := f.unsubCount("q", args); got != 1 {
		t.Errorf("release after destroy unsubscribed again, got %d", got)
	}

	// Backend-driven updates stop: the transition finds no live cell.
	f.publish("q", args, "v2")
	if got := cell.Peek(); got != "v1" {
		t.Errorf("destroyed cell received backend update, got %v", got)
	}

	// Refresh still works against whatever local state remains.
	cell.Refresh()
	if got := cell.Peek(); got != "v2" {
		t.Errorf("refresh after destroy ignored local state, got %v", got)
	}

	if !cell.Loaded() {
		t.Error("loaded regressed after destroy")
	}
}

func TestDestroyedTokenCanResubscribe(t *testing.T) {
	f := newFakeBackend()
	c := New(f)
	args := map[string]any{"id": 1}

	cell1, _ := c.QuerySignal("q", args)
	cell1.Destroy()

	cell2, err := c.QuerySignal("q", args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cell1 == cell2 {
		t.Error("destroyed cell was reused instead of replaced")
	}
	if got := c.ActiveCells(); got != 1 {
		t.Errorf("expected 1 live cell, got %d", got)
	}
}

func TestTransitionBatchSnapshot(t *testing.T) {
	f := newFakeBackend()
	c := New(f)
	argsA := map[string]any{"id": "a"}
	argsB := map[string]any{"id": "b"}

	cellA, _ := c.QuerySignal("q", argsA)
	cellB, _ := c.QuerySignal("q", argsB)

	f.setResult("q", argsA, "va")
	f.setResult("q", argsB, "vb")

	// By the time any listener runs, every cell in the batch must
	// already be refreshed.
	consistent := true
	release := cellA.Subscribe(func() {
		if !cellB.loaded.Peek() || cellB.Peek() != "vb" {
			consistent = false
		}
	})
	defer release()

	f.transition(fakeToken("q", argsA), fakeToken("q", argsB))

	if !cellA.Loaded() || cellA.Peek() != "va" {
		t.Fatalf("cell A not refreshed, value %v", cellA.Peek())
	}
	if !consistent {
		t.Error("listener observed a partially refreshed batch")
	}
}

func TestTransitionDeduplicatesTokens(t *testing.T) {
	f := newFakeBackend()

	var delivered []int
	obs := &recordingObserver{onTransition: func(n int) { delivered = append(delivered, n) }}
	c := New(f, WithObserver(obs))

	args := map[string]any{"id": 1}
	_, _ = c.QuerySignal("q", args)
	f.setResult("q", args, "v")

	token := fakeToken("q", args)
	f.transition(token, token, token)

	if len(delivered) != 1 || delivered[0] != 1 {
		t.Errorf("expected one batch with 1 distinct token, got %v", delivered)
	}
}
