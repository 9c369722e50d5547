package server

import (
	"errors"
	"testing"

	"github.com/blockberries/abcistate"
)

func mustPanic(t *testing.T, what string, fn func()) {
	t.Helper()
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic for %s", what)
		}
	}()
	fn()
}

func readyGuard() *LifecycleGuard {
	g := NewLifecycleGuard()
	g.AcquireInit("InitChain")
	g.CompleteInit()
	return g
}

func runBlock(g *LifecycleGuard, txs int) {
	g.AcquireBeginBlock()
	g.CompleteBeginBlock()
	for i := 0; i < txs; i++ {
		g.AcquireDeliverTx()
		g.CompleteDeliverTx()
	}
	g.AcquireEndBlock()
	g.CompleteEndBlock()
	g.AcquireCommit()
	g.CompleteCommit()
}

func TestLifecycleGuard_HappyPath(t *testing.T) {
	g := readyGuard()

	if !g.IsReady() {
		t.Fatal("expected Ready after init")
	}

	runBlock(g, 2)
	if !g.IsReady() {
		t.Fatal("expected Ready after commit")
	}

	// Empty block, then cycle again.
	runBlock(g, 0)
	runBlock(g, 1)
	if !g.IsReady() {
		t.Fatalf("expected Ready after third cycle, got %s", g.State())
	}
}

func TestLifecycleGuard_States(t *testing.T) {
	g := NewLifecycleGuard()
	if g.State() != "Uninitialized" {
		t.Fatalf("unexpected initial state %s", g.State())
	}
	g.AcquireInit("InitChain")
	if g.State() != "Initializing" {
		t.Fatalf("unexpected state %s", g.State())
	}
	g.CompleteInit()

	g.AcquireBeginBlock()
	g.CompleteBeginBlock()
	if g.State() != "InBlock" {
		t.Fatalf("unexpected state %s", g.State())
	}
	g.AcquireEndBlock()
	g.CompleteEndBlock()
	if g.State() != "Ended" {
		t.Fatalf("unexpected state %s", g.State())
	}
	g.AcquireCommit()
	if g.State() != "Committing" {
		t.Fatalf("unexpected state %s", g.State())
	}
	g.FailCommit()
	if g.State() != "Ended" {
		t.Fatalf("expected Ended after failed commit, got %s", g.State())
	}
}

func TestLifecycleGuard_ConcurrentBeforeInit(t *testing.T) {
	g := NewLifecycleGuard()
	if err := g.CheckConcurrent(); !errors.Is(err, abcistate.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}

	g.AcquireInit("InitChain")
	g.FailInit()
	if err := g.CheckConcurrent(); !errors.Is(err, abcistate.ErrNotReady) {
		t.Fatalf("expected ErrNotReady after failed init, got %v", err)
	}
}

func TestLifecycleGuard_ConcurrentAfterInit(t *testing.T) {
	g := readyGuard()
	if err := g.CheckConcurrent(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Concurrent calls stay allowed mid-block.
	g.AcquireBeginBlock()
	g.CompleteBeginBlock()
	if err := g.CheckConcurrent(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLifecycleGuard_DoubleInit(t *testing.T) {
	g := readyGuard()
	mustPanic(t, "double InitChain", func() { g.AcquireInit("InitChain") })
}

func TestLifecycleGuard_TryAcquireInit(t *testing.T) {
	g := NewLifecycleGuard()
	if !g.TryAcquireInit() {
		t.Fatal("expected first TryAcquireInit to succeed")
	}
	g.CompleteInit()
	if g.TryAcquireInit() {
		t.Fatal("expected TryAcquireInit to fail once initialized")
	}
}

func TestLifecycleGuard_OrderViolations(t *testing.T) {
	mustPanic(t, "BeginBlock before init", func() { NewLifecycleGuard().AcquireBeginBlock() })
	mustPanic(t, "DeliverTx outside block", func() { readyGuard().AcquireDeliverTx() })
	mustPanic(t, "EndBlock outside block", func() { readyGuard().AcquireEndBlock() })
	mustPanic(t, "Commit without EndBlock", func() { readyGuard().AcquireCommit() })

	g := readyGuard()
	g.AcquireBeginBlock()
	g.CompleteBeginBlock()
	mustPanic(t, "nested BeginBlock", func() { g.AcquireBeginBlock() })
	mustPanic(t, "Commit mid-block", func() { g.AcquireCommit() })

	g.AcquireEndBlock()
	g.CompleteEndBlock()
	mustPanic(t, "DeliverTx after EndBlock", func() { g.AcquireDeliverTx() })

	// The guard stays usable after a rejected call.
	g.AcquireCommit()
	g.CompleteCommit()
	if !g.IsReady() {
		t.Fatal("expected Ready")
	}
}

func TestLifecycleGuard_FailBeginBlock(t *testing.T) {
	g := readyGuard()
	g.AcquireBeginBlock()
	g.FailBeginBlock()
	if !g.IsReady() {
		t.Fatal("expected Ready after failed BeginBlock")
	}
	runBlock(g, 1)
}
