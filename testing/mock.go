// Package abcitest provides test utilities for state machine development:
// a configurable mock, a harness that drives an adapter through the block
// lifecycle, and a compliance suite.
package abcitest

import (
	"sync"
	"sync/atomic"

	"github.com/blockberries/abcistate"
	"github.com/blockberries/abcistate/txcodec"
	"github.com/blockberries/abcistate/value"
)

// Compile-time interface check.
var _ abcistate.StateMachine = (*MockStateMachine)(nil)

// MockStateMachine is a configurable state machine for adapter and engine
// tests. Every method is configurable via a function field. Unconfigured
// methods keep the state passed to Initialize, accept every transaction
// and commit to a fixed hash.
type MockStateMachine struct {
	mu    sync.Mutex
	state value.Value
	ctx   abcistate.Context

	InitializeFn func(value.Value, abcistate.Context, bool) error
	TransitionFn func(abcistate.Event) error
	CheckFn      func(txcodec.Tx) error
	CommitFn     func() (string, error)
	QueryFn      func() (value.Value, error)
	ContextFn    func() abcistate.Context

	// Call counters (atomic for concurrent access).
	InitializeCalls atomic.Int64
	TransitionCalls atomic.Int64
	CheckCalls      atomic.Int64
	CommitCalls     atomic.Int64
	QueryCalls      atomic.Int64
}

// DefaultCommitment is the hash returned by an unconfigured Commit.
const DefaultCommitment = "01"

func (m *MockStateMachine) Initialize(state value.Value, ctx abcistate.Context, replay bool) error {
	m.InitializeCalls.Add(1)
	if m.InitializeFn != nil {
		return m.InitializeFn(state, ctx, replay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	m.ctx = ctx.Clone()
	return nil
}

func (m *MockStateMachine) Transition(ev abcistate.Event) error {
	m.TransitionCalls.Add(1)
	if m.TransitionFn != nil {
		return m.TransitionFn(ev)
	}
	return nil
}

func (m *MockStateMachine) Check(tx txcodec.Tx) error {
	m.CheckCalls.Add(1)
	if m.CheckFn != nil {
		return m.CheckFn(tx)
	}
	return nil
}

func (m *MockStateMachine) Commit() (string, error) {
	m.CommitCalls.Add(1)
	if m.CommitFn != nil {
		return m.CommitFn()
	}
	return DefaultCommitment, nil
}

func (m *MockStateMachine) Query() (value.Value, error) {
	m.QueryCalls.Add(1)
	if m.QueryFn != nil {
		return m.QueryFn()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.IsNull() {
		return value.Mapping(nil), nil
	}
	return m.state, nil
}

func (m *MockStateMachine) Context() abcistate.Context {
	if m.ContextFn != nil {
		return m.ContextFn()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctx.Clone()
}
