// Package server provides the ABCI adapter: it enforces the block
// lifecycle, drives a StateMachine through it and persists the committed
// results.
package server

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/blockberries/abcistate"
)

// lifecycleState represents a state in the ABCI block lifecycle.
type lifecycleState uint32

const (
	// stateUninitialized: waiting for Info (restore) or InitChain. No
	// other calls allowed.
	stateUninitialized lifecycleState = iota
	// stateInitializing: a restore or InitChain is in progress.
	stateInitializing
	// stateReady: no block open. BeginBlock is the only valid next
	// sequential call. CheckTx and Query are allowed.
	stateReady
	// stateInBlock: BeginBlock returned. DeliverTx and EndBlock are
	// valid.
	stateInBlock
	// stateEnded: EndBlock returned. Commit is the only valid next
	// sequential call.
	stateEnded
	// stateCommitting: Commit has been called. Waiting for it
	// to return.
	stateCommitting
)

func (s lifecycleState) String() string {
	switch s {
	case stateUninitialized:
		return "Uninitialized"
	case stateInitializing:
		return "Initializing"
	case stateReady:
		return "Ready"
	case stateInBlock:
		return "InBlock"
	case stateEnded:
		return "Ended"
	case stateCommitting:
		return "Committing"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// LifecycleGuard enforces the block lifecycle. Out-of-order calls are
// programming errors in the host and panic.
//
// Every sequential call holds seqMu from Acquire to Complete or Fail, so
// block calls never overlap.
type LifecycleGuard struct {
	state atomic.Uint32
	// Mutex for sequential calls (InitChain, BeginBlock, DeliverTx,
	// EndBlock, Commit).
	seqMu sync.Mutex
	// Tracks whether initialization has completed (for concurrent
	// call gating).
	initDone atomic.Bool
}

// NewLifecycleGuard creates a guard in the Uninitialized state.
func NewLifecycleGuard() *LifecycleGuard {
	g := &LifecycleGuard{}
	g.state.Store(uint32(stateUninitialized))
	return g
}

// State returns the current lifecycle state.
func (g *LifecycleGuard) State() string {
	return lifecycleState(g.state.Load()).String()
}

func (g *LifecycleGuard) acquire(method string, expected lifecycleState) {
	g.seqMu.Lock()
	if state := lifecycleState(g.state.Load()); state != expected {
		g.seqMu.Unlock()
		panic(fmt.Sprintf("abcistate: %s called in state %s (expected %s)", method, state, expected))
	}
}

func (g *LifecycleGuard) release(next lifecycleState) {
	g.state.Store(uint32(next))
	g.seqMu.Unlock()
}

// AcquireInit transitions Uninitialized → Initializing.
// Panics if not in Uninitialized state.
func (g *LifecycleGuard) AcquireInit(method string) {
	g.acquire(method, stateUninitialized)
	g.state.Store(uint32(stateInitializing))
}

// TryAcquireInit is AcquireInit that reports false instead of panicking
// when initialization already happened.
func (g *LifecycleGuard) TryAcquireInit() bool {
	g.seqMu.Lock()
	if lifecycleState(g.state.Load()) != stateUninitialized {
		g.seqMu.Unlock()
		return false
	}
	g.state.Store(uint32(stateInitializing))
	return true
}

// CompleteInit transitions Initializing → Ready and enables concurrent
// calls.
func (g *LifecycleGuard) CompleteInit() {
	g.initDone.Store(true)
	g.release(stateReady)
}

// FailInit rolls back to Uninitialized.
func (g *LifecycleGuard) FailInit() {
	g.release(stateUninitialized)
}

// AcquireBeginBlock locks for BeginBlock.
// Panics if not in Ready state.
func (g *LifecycleGuard) AcquireBeginBlock() {
	g.acquire("BeginBlock", stateReady)
}

// CompleteBeginBlock transitions Ready → InBlock.
func (g *LifecycleGuard) CompleteBeginBlock() {
	g.release(stateInBlock)
}

// FailBeginBlock stays in Ready.
func (g *LifecycleGuard) FailBeginBlock() {
	g.release(stateReady)
}

// AcquireDeliverTx locks for DeliverTx.
// Panics if not in InBlock state.
func (g *LifecycleGuard) AcquireDeliverTx() {
	g.acquire("DeliverTx", stateInBlock)
}

// CompleteDeliverTx stays in InBlock.
func (g *LifecycleGuard) CompleteDeliverTx() {
	g.release(stateInBlock)
}

// AcquireEndBlock locks for EndBlock.
// Panics if not in InBlock state.
func (g *LifecycleGuard) AcquireEndBlock() {
	g.acquire("EndBlock", stateInBlock)
}

// CompleteEndBlock transitions InBlock → Ended.
func (g *LifecycleGuard) CompleteEndBlock() {
	g.release(stateEnded)
}

// FailEndBlock stays in InBlock.
func (g *LifecycleGuard) FailEndBlock() {
	g.release(stateInBlock)
}

// AcquireCommit transitions Ended → Committing.
// Panics if not in Ended state.
func (g *LifecycleGuard) AcquireCommit() {
	g.acquire("Commit", stateEnded)
	g.state.Store(uint32(stateCommitting))
}

// CompleteCommit transitions Committing → Ready.
func (g *LifecycleGuard) CompleteCommit() {
	g.release(stateReady)
}

// FailCommit transitions Committing → Ended, allowing retry.
func (g *LifecycleGuard) FailCommit() {
	g.release(stateEnded)
}

// CheckConcurrent verifies that concurrent calls are allowed (any state
// after initialization).
func (g *LifecycleGuard) CheckConcurrent() error {
	if !g.initDone.Load() {
		return abcistate.ErrNotReady
	}
	return nil
}

// IsReady returns true if the guard is in the Ready state.
func (g *LifecycleGuard) IsReady() bool {
	return lifecycleState(g.state.Load()) == stateReady
}
