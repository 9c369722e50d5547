// Package abcistate adapts application state machines to the ABCI
// block lifecycle.
//
// A consensus engine drives an [Application] through Info, InitChain,
// BeginBlock, DeliverTx, EndBlock and Commit. The adapter in package
// server implements Application on top of a [StateMachine], persisting
// state snapshots and per-block diffs so that a restarted node resumes
// exactly where it left off.
package abcistate

import (
	"context"

	"github.com/blockberries/abcistate/txcodec"
	"github.com/blockberries/abcistate/types"
	"github.com/blockberries/abcistate/value"
)

// Application is the protocol surface the consensus engine calls.
//
// The engine guarantees the following call order:
//  1. Info is called on every startup.
//  2. InitChain is called exactly once, on a fresh chain.
//  3. For every block: BeginBlock, DeliverTx per transaction, EndBlock,
//     Commit.
//  4. CheckTx and Query may be called concurrently at any time after
//     initialization.
type Application interface {
	// Info reports the last committed height and app hash. On a node
	// with persisted state the first call also restores the state
	// machine from the latest snapshot.
	Info(ctx context.Context, req types.InfoRequest) (types.InfoResponse, error)

	// InitChain initializes a fresh chain with its genesis validators
	// and application state.
	InitChain(ctx context.Context, req types.InitChainRequest) (types.InitChainResponse, error)

	// CheckTx validates a transaction for the mempool without mutating
	// state. This method MUST be safe for concurrent use.
	CheckTx(ctx context.Context, req types.CheckTxRequest) (types.CheckTxResponse, error)

	BeginBlock(ctx context.Context, req types.BeginBlockRequest) (types.BeginBlockResponse, error)

	// DeliverTx executes one transaction of the current block. A
	// rejected transaction is reported in the response and never aborts
	// the block.
	DeliverTx(ctx context.Context, req types.DeliverTxRequest) (types.DeliverTxResponse, error)

	// EndBlock closes the block and returns the complete validator set.
	EndBlock(ctx context.Context, req types.EndBlockRequest) (types.EndBlockResponse, error)

	// Commit durably persists the block's resulting state and returns its
	// app hash. Must be crash-safe: either the new state lands, or the
	// previous one is kept.
	Commit(ctx context.Context) (types.CommitResponse, error)

	// Query reads current state or a historical diff. This method MUST be
	// safe for concurrent use.
	Query(ctx context.Context, req types.QueryRequest) (types.QueryResponse, error)
}

// Connection represents a transport-agnostic connection to an
// Application. Both gRPC clients and in-process adapters implement this.
type Connection interface {
	Application

	// Close releases transport resources.
	Close() error
}

// StateMachine is the application logic driven by the adapter.
//
// Transition is only called from the block lifecycle, which is strictly
// sequential. Check, Query and Context may be called concurrently with
// Transition and must be safe for that.
type StateMachine interface {
	// Initialize sets the state machine's state and context. replay is
	// true when restoring from a persisted snapshot rather than genesis.
	Initialize(state value.Value, ctx Context, replay bool) error

	// Transition applies a lifecycle event.
	Transition(ev Event) error

	// Check validates a transaction against current state without
	// applying it.
	Check(tx txcodec.Tx) error

	// Commit finalizes the pending block and returns a deterministic
	// hex-encoded commitment to the resulting state.
	Commit() (string, error)

	// Query returns the current state view. It returns ErrNotFound when
	// no state is available.
	Query() (value.Value, error)

	// Context returns the current context.
	Context() Context
}

// Context is the serializable metadata shared between the adapter and the
// state machine. Validators maps the standard base64 encoding of each
// validator public key to its voting power.
type Context struct {
	Validators map[string]int64 `json:"validators"`
	Data       value.Value      `json:"data"`
}

// Clone returns a copy of c that does not share the validator map.
func (c Context) Clone() Context {
	out := Context{Data: c.Data}
	if c.Validators != nil {
		out.Validators = make(map[string]int64, len(c.Validators))
		for k, v := range c.Validators {
			out.Validators[k] = v
		}
	}
	return out
}

// EventType names a lifecycle event.
type EventType string

const (
	EventBeginBlock  EventType = "begin-block"
	EventTransaction EventType = "transaction"
	EventBlock       EventType = "block"
)

// Event is a lifecycle event delivered to StateMachine.Transition.
// BeginBlock is set for EventBeginBlock and Tx for EventTransaction.
type Event struct {
	Type       EventType
	BeginBlock *BeginBlockData
	Tx         *txcodec.Tx
}

// BeginBlockData describes the block being produced.
type BeginBlockData struct {
	// Time is the block time in seconds since the Unix epoch.
	Time   int64
	Header types.Header
	// Height is the height of the block being produced.
	Height int64
}
