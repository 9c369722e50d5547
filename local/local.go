// Package local provides an in-process ABCI connection.
//
// For state machines compiled into the same binary as the consensus
// engine, the connection hosts an adapter directly, with lifecycle
// enforcement and no serialization overhead.
package local

import (
	"context"

	"github.com/blockberries/abcistate"
	"github.com/blockberries/abcistate/server"
	"github.com/blockberries/abcistate/types"
	"github.com/blockberries/abcistate/value"
)

// Compile-time interface check.
var _ abcistate.Connection = (*Connection)(nil)

// journalCloser is implemented by journals that own a storage backend,
// such as diffdb.Journal.
type journalCloser interface {
	Close(context.Context) error
}

// Connection hosts an adapter in-process.
type Connection struct {
	adapter *server.Adapter
	journal server.DiffJournal
}

// NewConnection creates an in-process connection around a new adapter
// for sm. Closing the connection also closes the journal when it owns a
// storage backend.
func NewConnection(sm abcistate.StateMachine, snapshots server.SnapshotStore, journal server.DiffJournal,
	genesis value.Value, opts ...server.Option) *Connection {
	return &Connection{
		adapter: server.New(sm, snapshots, journal, genesis, opts...),
		journal: journal,
	}
}

func (c *Connection) Info(ctx context.Context, req types.InfoRequest) (types.InfoResponse, error) {
	return c.adapter.Info(ctx, req)
}

func (c *Connection) InitChain(ctx context.Context, req types.InitChainRequest) (types.InitChainResponse, error) {
	return c.adapter.InitChain(ctx, req)
}

func (c *Connection) CheckTx(ctx context.Context, req types.CheckTxRequest) (types.CheckTxResponse, error) {
	return c.adapter.CheckTx(ctx, req)
}

func (c *Connection) BeginBlock(ctx context.Context, req types.BeginBlockRequest) (types.BeginBlockResponse, error) {
	return c.adapter.BeginBlock(ctx, req)
}

func (c *Connection) DeliverTx(ctx context.Context, req types.DeliverTxRequest) (types.DeliverTxResponse, error) {
	return c.adapter.DeliverTx(ctx, req)
}

func (c *Connection) EndBlock(ctx context.Context, req types.EndBlockRequest) (types.EndBlockResponse, error) {
	return c.adapter.EndBlock(ctx, req)
}

func (c *Connection) Commit(ctx context.Context) (types.CommitResponse, error) {
	return c.adapter.Commit(ctx)
}

func (c *Connection) Query(ctx context.Context, req types.QueryRequest) (types.QueryResponse, error) {
	return c.adapter.Query(ctx, req)
}

// Close drains pending diff writes, then releases the journal.
func (c *Connection) Close() error {
	if err := c.adapter.Close(); err != nil {
		return err
	}
	if jc, ok := c.journal.(journalCloser); ok {
		return jc.Close(context.Background())
	}
	return nil
}

// Adapter returns the underlying adapter for advanced use cases.
func (c *Connection) Adapter() *server.Adapter {
	return c.adapter
}
