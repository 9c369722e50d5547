package abcitest

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/blockberries/abcistate"
	"github.com/blockberries/abcistate/diffdb"
	"github.com/blockberries/abcistate/local"
	"github.com/blockberries/abcistate/server"
	"github.com/blockberries/abcistate/snapshot"
	"github.com/blockberries/abcistate/types"
	"github.com/blockberries/abcistate/value"
)

// ChainID is the chain id used by the harness.
const ChainID = "test-chain"

// GenesisTime is the time of the first block produced by the harness.
// Every following block is five seconds later.
var GenesisTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Harness drives a state machine through an in-process adapter backed by
// a snapshot directory under t.TempDir() and an in-memory diff journal.
// Restart rebuilds the state machine and adapter on the same storage.
type Harness struct {
	t       *testing.T
	factory func() abcistate.StateMachine
	genesis value.Value
	opts    []server.Option

	dir     string
	journal *diffdb.Journal
	sm      abcistate.StateMachine
	conn    *local.Connection
}

// BlockResult collects the responses of one committed block.
type BlockResult struct {
	Height           int64
	DeliverTx        []types.DeliverTxResponse
	ValidatorUpdates []types.ValidatorUpdate
	AppHash          []byte
}

// NewHarness creates a harness. factory is called once now and again on
// every Restart. genesis is the state used when InitChain carries none.
func NewHarness(t *testing.T, factory func() abcistate.StateMachine, genesis value.Value, opts ...server.Option) *Harness {
	t.Helper()
	h := &Harness{
		t:       t,
		factory: factory,
		genesis: genesis,
		opts:    append([]server.Option{server.WithLogger(zap.NewNop())}, opts...),
		dir:     t.TempDir(),
		journal: diffdb.NewJournal(diffdb.NewMemKVStore(), true),
	}
	h.open()
	t.Cleanup(func() { h.conn.Close() })
	return h
}

func (h *Harness) open() {
	h.t.Helper()
	store, err := snapshot.Open(h.dir, snapshot.WithLogger(zap.NewNop()))
	if err != nil {
		h.t.Fatalf("open snapshot store: %v", err)
	}
	h.sm = h.factory()
	h.conn = local.NewConnection(h.sm, store, h.journal, h.genesis, h.opts...)
}

// Connection returns the in-process connection.
func (h *Harness) Connection() *local.Connection { return h.conn }

// Adapter returns the adapter behind the connection.
func (h *Harness) Adapter() *server.Adapter { return h.conn.Adapter() }

// StateMachine returns the current state machine instance.
func (h *Harness) StateMachine() abcistate.StateMachine { return h.sm }

// Dir returns the snapshot directory.
func (h *Harness) Dir() string { return h.dir }

// Height returns the committed height.
func (h *Harness) Height() int64 { return h.Adapter().Height() }

// Info calls Info.
func (h *Harness) Info() types.InfoResponse {
	h.t.Helper()
	resp, err := h.conn.Info(context.Background(), types.InfoRequest{Version: "test"})
	if err != nil {
		h.t.Fatalf("Info failed: %v", err)
	}
	return resp
}

// InitChain initializes the chain with the harness genesis state.
func (h *Harness) InitChain(validators ...types.Validator) {
	h.t.Helper()
	h.InitChainWith(types.InitChainRequest{
		ChainID:    ChainID,
		Time:       types.TimeToTimestamp(GenesisTime),
		Validators: validators,
	})
}

// InitChainWith initializes the chain with a custom request.
func (h *Harness) InitChainWith(req types.InitChainRequest) {
	h.t.Helper()
	if _, err := h.conn.InitChain(context.Background(), req); err != nil {
		h.t.Fatalf("InitChain failed: %v", err)
	}
}

// Block runs BeginBlock, DeliverTx for each tx, EndBlock and Commit for
// the next height.
func (h *Harness) Block(txs ...[]byte) BlockResult {
	h.t.Helper()
	ctx := context.Background()
	height := h.Height() + 1
	res := BlockResult{Height: height}

	header := types.Header{
		ChainID: ChainID,
		Height:  height,
		Time:    types.TimeToTimestamp(BlockTime(height)),
	}
	if _, err := h.conn.BeginBlock(ctx, types.BeginBlockRequest{Header: header}); err != nil {
		h.t.Fatalf("BeginBlock (height=%d) failed: %v", height, err)
	}
	for i, tx := range txs {
		resp, err := h.conn.DeliverTx(ctx, types.DeliverTxRequest{Tx: tx})
		if err != nil {
			h.t.Fatalf("DeliverTx %d (height=%d) failed: %v", i, height, err)
		}
		res.DeliverTx = append(res.DeliverTx, resp)
	}
	end, err := h.conn.EndBlock(ctx, types.EndBlockRequest{Height: height})
	if err != nil {
		h.t.Fatalf("EndBlock (height=%d) failed: %v", height, err)
	}
	res.ValidatorUpdates = end.ValidatorUpdates

	commit, err := h.conn.Commit(ctx)
	if err != nil {
		h.t.Fatalf("Commit (height=%d) failed: %v", height, err)
	}
	res.AppHash = commit.Data
	return res
}

// CheckTx submits a transaction for mempool validation.
func (h *Harness) CheckTx(tx []byte) types.CheckTxResponse {
	h.t.Helper()
	resp, err := h.conn.CheckTx(context.Background(), types.CheckTxRequest{Tx: tx, Type: types.CheckTxNew})
	if err != nil {
		h.t.Fatalf("CheckTx failed: %v", err)
	}
	return resp
}

// MustAcceptTx asserts that a transaction is accepted.
func (h *Harness) MustAcceptTx(tx []byte) {
	h.t.Helper()
	if resp := h.CheckTx(tx); !resp.IsOK() {
		h.t.Fatalf("expected tx accepted, got code=%d log=%q", resp.Code, resp.Log)
	}
}

// MustRejectTx asserts that a transaction is rejected.
func (h *Harness) MustRejectTx(tx []byte) {
	h.t.Helper()
	if resp := h.CheckTx(tx); resp.IsOK() {
		h.t.Fatal("expected tx rejected, got accepted")
	}
}

// QueryRaw sends a query and returns the raw response.
func (h *Harness) QueryRaw(req types.QueryRequest) types.QueryResponse {
	h.t.Helper()
	resp, err := h.conn.Query(context.Background(), req)
	if err != nil {
		h.t.Fatalf("Query failed: %v", err)
	}
	return resp
}

// Query returns the state value at path. It fails the test unless the
// query succeeds.
func (h *Harness) Query(path string) value.Value {
	h.t.Helper()
	return h.mustDecode(h.QueryRaw(types.QueryRequest{Path: path}))
}

// Diff flushes pending diff writes and returns the diff committed at
// height.
func (h *Harness) Diff(height int64) value.Value {
	h.t.Helper()
	h.Flush()
	return h.mustDecode(h.QueryRaw(types.QueryRequest{Data: []byte("diff"), Height: height}))
}

// Flush waits for pending diff writes.
func (h *Harness) Flush() {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.Adapter().Flush(ctx); err != nil {
		h.t.Fatalf("Flush failed: %v", err)
	}
}

// Restart closes the adapter and reopens it on the same storage with a
// fresh state machine, then calls Info.
func (h *Harness) Restart() types.InfoResponse {
	h.t.Helper()
	if err := h.Adapter().Close(); err != nil {
		h.t.Fatalf("close adapter: %v", err)
	}
	h.open()
	return h.Info()
}

func (h *Harness) mustDecode(resp types.QueryResponse) value.Value {
	h.t.Helper()
	if !resp.IsOK() {
		h.t.Fatalf("query failed: code=%d log=%q", resp.Code, resp.Log)
	}
	v, err := DecodeValue(resp)
	if err != nil {
		h.t.Fatalf("decode query value: %v", err)
	}
	return v
}

// --- Helper Factories ---

// DecodeValue decodes the base64 canonical JSON carried by a query
// response.
func DecodeValue(resp types.QueryResponse) (value.Value, error) {
	raw, err := base64.StdEncoding.DecodeString(string(resp.Value))
	if err != nil {
		return value.Value{}, err
	}
	return value.Parse(raw)
}

// BlockTime returns the header time the harness uses for height.
func BlockTime(height int64) time.Time {
	return GenesisTime.Add(time.Duration(height) * 5 * time.Second)
}

// Validator returns an ed25519 validator whose 32-byte key is filled with
// seed.
func Validator(seed byte, power int64) types.Validator {
	key := make([]byte, 32)
	for i := range key {
		key[i] = seed
	}
	return types.Validator{
		PubKey: types.PublicKey{Type: types.KeyTypeEd25519, Data: key},
		Power:  power,
	}
}
