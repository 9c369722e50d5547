package server

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/blockberries/abcistate"
	"github.com/blockberries/abcistate/log"
	"github.com/blockberries/abcistate/snapshot"
	"github.com/blockberries/abcistate/txcodec"
	"github.com/blockberries/abcistate/types"
	"github.com/blockberries/abcistate/value"
)

// DefaultDiffQueueSize is the diff worker backlog used unless overridden.
const DefaultDiffQueueSize = 64

const (
	logInvalidEncoding = "Invalid transaction encoding"
	logDiffNotFound    = "diff not found"
	logStateNotFound   = "state not found"
	diffQueryMarker    = "diff"
)

var diffQueryMarkerB64 = base64.StdEncoding.EncodeToString([]byte(diffQueryMarker))

// SnapshotStore persists committed state generations. snapshot.Store
// implements it.
type SnapshotStore interface {
	Load() (*snapshot.Snapshot, error)
	Promote(snapshot.Snapshot) (demoted bool, err error)
}

// DiffJournal stores per-height diffs. diffdb.Journal implements it.
type DiffJournal interface {
	Append(height int64, patch value.Value) error
	Get(height int64) (value.Value, error)
}

// Compile-time interface check.
var _ abcistate.Application = (*Adapter)(nil)

// Adapter drives a StateMachine through the ABCI lifecycle and persists
// every committed block. The consensus engine interacts with the state
// machine exclusively through the adapter.
type Adapter struct {
	sm        abcistate.StateMachine
	snapshots SnapshotStore
	journal   DiffJournal
	genesis   value.Value
	guard     *LifecycleGuard

	logger    *zap.Logger
	observer  Observer
	queueSize int
	diffs     *diffWorker

	// Committed values.
	mu        sync.RWMutex
	height    int64
	appHash   []byte
	lastState []byte // canonical JSON of the last committed state view

	// Height of the open block. Only touched under the guard's sequential
	// lock.
	blockHeight int64
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger. Defaults to the global logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// WithObserver sets the observer. Defaults to a LogObserver on the
// adapter's logger.
func WithObserver(o Observer) Option {
	return func(a *Adapter) { a.observer = o }
}

// WithDiffQueueSize bounds the diff worker backlog.
func WithDiffQueueSize(n int) Option {
	return func(a *Adapter) { a.queueSize = n }
}

// New creates an Adapter. genesis is the initial application state used
// when InitChain carries none.
func New(sm abcistate.StateMachine, snapshots SnapshotStore, journal DiffJournal, genesis value.Value, opts ...Option) *Adapter {
	a := &Adapter{
		sm:        sm,
		snapshots: snapshots,
		journal:   journal,
		genesis:   genesis,
		guard:     NewLifecycleGuard(),
		logger:    log.L(),
		queueSize: DefaultDiffQueueSize,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.observer == nil {
		a.observer = NewLogObserver(a.logger)
	}
	if a.queueSize < 1 {
		a.queueSize = 1
	}
	a.diffs = newDiffWorker(journal, a.observer, a.queueSize)
	return a
}

// Info reports the last committed block. On the first call after startup
// it restores the state machine from the latest snapshot.
func (a *Adapter) Info(_ context.Context, _ types.InfoRequest) (types.InfoResponse, error) {
	if !a.guard.TryAcquireInit() {
		return a.info(), nil
	}

	snap, err := a.snapshots.Load()
	if err != nil {
		a.guard.FailInit()
		return types.InfoResponse{}, abcistate.NewHaltError(0, fmt.Sprintf("failed to load snapshot: %v", err))
	}
	if snap == nil {
		a.guard.FailInit()
		return types.InfoResponse{}, nil
	}

	if err := a.sm.Initialize(snap.State, snap.Context.Clone(), true); err != nil {
		a.guard.FailInit()
		return types.InfoResponse{}, abcistate.NewHaltError(snap.Height, fmt.Sprintf("failed to restore state machine: %v", err))
	}
	state, err := value.Canonical(snap.State)
	if err != nil {
		a.guard.FailInit()
		return types.InfoResponse{}, abcistate.NewHaltError(snap.Height, fmt.Sprintf("snapshot state not encodable: %v", err))
	}
	a.setCommitted(snap.Height, snap.AppHash, state)
	a.guard.CompleteInit()

	a.logger.Info("Restored state from snapshot",
		zap.Int64("height", snap.Height),
		zap.String("appHash", hex.EncodeToString(snap.AppHash)))
	return a.info(), nil
}

func (a *Adapter) info() types.InfoResponse {
	a.mu.RLock()
	defer a.mu.RUnlock()
	// Nothing committed yet, even when InitChain moved the height forward.
	if a.appHash == nil {
		return types.InfoResponse{}
	}
	return types.InfoResponse{
		LastBlockHeight:  a.height,
		LastBlockAppHash: append([]byte(nil), a.appHash...),
	}
}

// InitChain initializes a fresh chain. It must be called at most once and
// fails if the node already holds committed state.
func (a *Adapter) InitChain(_ context.Context, req types.InitChainRequest) (types.InitChainResponse, error) {
	a.guard.AcquireInit("InitChain")

	existing, err := a.snapshots.Load()
	if err != nil {
		a.guard.FailInit()
		return types.InitChainResponse{}, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if existing != nil {
		a.guard.FailInit()
		return types.InitChainResponse{}, fmt.Errorf("chain already initialized at height %d", existing.Height)
	}

	state := a.genesis
	if len(req.AppState) > 0 {
		if state, err = value.Parse(req.AppState); err != nil {
			a.guard.FailInit()
			return types.InitChainResponse{}, fmt.Errorf("invalid genesis app state: %w", err)
		}
	}

	validators := make(map[string]int64, len(req.Validators))
	for _, v := range req.Validators {
		validators[base64.StdEncoding.EncodeToString(v.PubKey.Data)] = v.Power
	}
	if err := a.sm.Initialize(state, abcistate.Context{Validators: validators}, false); err != nil {
		a.guard.FailInit()
		return types.InitChainResponse{}, fmt.Errorf("failed to initialize state machine: %w", err)
	}

	var committed int64
	if req.InitialHeight > 1 {
		committed = req.InitialHeight - 1
	}
	a.setCommitted(committed, nil, nil)
	a.guard.CompleteInit()

	a.logger.Info("Initialized chain",
		zap.String("chainID", req.ChainID),
		zap.Int("validators", len(validators)))
	return types.InitChainResponse{}, nil
}

// CheckTx validates a transaction against current state. Safe for
// concurrent use.
func (a *Adapter) CheckTx(_ context.Context, req types.CheckTxRequest) (types.CheckTxResponse, error) {
	if err := a.guard.CheckConcurrent(); err != nil {
		return types.CheckTxResponse{}, err
	}
	tx, err := txcodec.Decode(req.Tx)
	if err != nil {
		return types.CheckTxResponse{Code: types.CodeInvalidTx, Log: logInvalidEncoding}, nil
	}
	if err := call(func() error { return a.sm.Check(tx) }); err != nil {
		a.logger.Debug("Rejected transaction",
			zap.Stringer("type", req.Type),
			zap.Uint32("nonce", tx.Nonce),
			zap.Error(err))
		return types.CheckTxResponse{Code: types.CodeInvalidTx, Log: err.Error()}, nil
	}
	return types.CheckTxResponse{Code: types.CodeOK}, nil
}

// BeginBlock opens the block at committed height + 1.
func (a *Adapter) BeginBlock(_ context.Context, req types.BeginBlockRequest) (types.BeginBlockResponse, error) {
	a.guard.AcquireBeginBlock()

	height := a.Height() + 1
	if req.Header.Height != 0 && req.Header.Height != height {
		a.guard.FailBeginBlock()
		return types.BeginBlockResponse{}, abcistate.NewHaltError(height,
			fmt.Sprintf("begin block for height %d, expected %d", req.Header.Height, height))
	}

	ev := abcistate.Event{
		Type: abcistate.EventBeginBlock,
		BeginBlock: &abcistate.BeginBlockData{
			Time:   req.Header.Time.Seconds,
			Header: req.Header,
			Height: height,
		},
	}
	if err := call(func() error { return a.sm.Transition(ev) }); err != nil {
		a.guard.FailBeginBlock()
		return types.BeginBlockResponse{}, asHalt(height, "begin-block transition failed", err)
	}

	a.blockHeight = height
	a.guard.CompleteBeginBlock()
	return types.BeginBlockResponse{}, nil
}

// DeliverTx executes one transaction. Rejections never abort the block.
func (a *Adapter) DeliverTx(_ context.Context, req types.DeliverTxRequest) (types.DeliverTxResponse, error) {
	a.guard.AcquireDeliverTx()
	defer a.guard.CompleteDeliverTx()

	tx, err := txcodec.Decode(req.Tx)
	if err != nil {
		return types.DeliverTxResponse{Code: types.CodeInvalidTx, Log: logInvalidEncoding}, nil
	}
	err = call(func() error {
		return a.sm.Transition(abcistate.Event{Type: abcistate.EventTransaction, Tx: &tx})
	})
	if err != nil {
		if h, ok := abcistate.IsHalt(err); ok {
			return types.DeliverTxResponse{}, h
		}
		a.logger.Debug("Transaction failed",
			zap.Int64("height", a.blockHeight),
			zap.Uint32("nonce", tx.Nonce),
			zap.Error(err))
		return types.DeliverTxResponse{Code: types.CodeInvalidTx, Log: err.Error()}, nil
	}
	return types.DeliverTxResponse{Code: types.CodeOK}, nil
}

// EndBlock closes the block and returns the full validator set, sorted by
// encoded public key.
func (a *Adapter) EndBlock(_ context.Context, req types.EndBlockRequest) (types.EndBlockResponse, error) {
	a.guard.AcquireEndBlock()

	if req.Height != 0 && req.Height != a.blockHeight {
		a.guard.FailEndBlock()
		return types.EndBlockResponse{}, abcistate.NewHaltError(a.blockHeight,
			fmt.Sprintf("end block for height %d, expected %d", req.Height, a.blockHeight))
	}

	if err := call(func() error { return a.sm.Transition(abcistate.Event{Type: abcistate.EventBlock}) }); err != nil {
		a.guard.FailEndBlock()
		return types.EndBlockResponse{}, asHalt(a.blockHeight, "block transition failed", err)
	}
	updates := a.validatorUpdates(a.sm.Context().Validators)

	a.guard.CompleteEndBlock()
	return types.EndBlockResponse{ValidatorUpdates: updates}, nil
}

func (a *Adapter) validatorUpdates(validators map[string]int64) []types.ValidatorUpdate {
	keys := make([]string, 0, len(validators))
	for k := range validators {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	updates := make([]types.ValidatorUpdate, 0, len(keys))
	for _, k := range keys {
		data, err := base64.StdEncoding.DecodeString(k)
		if err != nil {
			a.logger.Warn("Skipping validator with malformed key", zap.String("key", k), zap.Error(err))
			continue
		}
		power := validators[k]
		if power < 0 {
			a.logger.Warn("Clamping negative validator power", zap.String("key", k), zap.Int64("power", power))
			power = 0
		}
		updates = append(updates, types.ValidatorUpdate{
			PubKey: types.PublicKey{Type: types.KeyTypeEd25519, Data: data},
			Power:  types.NewVotingPower(uint64(power)),
		})
	}
	return updates
}

// Commit finalizes the block, durably promotes the resulting snapshot and
// schedules the diff against the previous state. Any failure to persist
// is fatal.
func (a *Adapter) Commit(_ context.Context) (types.CommitResponse, error) {
	start := time.Now()
	a.guard.AcquireCommit()
	height := a.blockHeight

	fail := func(reason string, err error) (types.CommitResponse, error) {
		a.guard.FailCommit()
		return types.CommitResponse{}, asHalt(height, reason, err)
	}

	var commitment string
	if err := call(func() (err error) { commitment, err = a.sm.Commit(); return err }); err != nil {
		return fail("state machine commit failed", err)
	}
	appHash, err := hex.DecodeString(commitment)
	if err != nil {
		return fail("state machine returned a non-hex commitment", err)
	}
	var state value.Value
	if err := call(func() (err error) { state, err = a.sm.Query(); return err }); err != nil {
		return fail("failed to read committed state", err)
	}
	next, err := value.Canonical(state)
	if err != nil {
		return fail("committed state not encodable", err)
	}

	demoted, err := a.snapshots.Promote(snapshot.Snapshot{
		Height:  height,
		AppHash: appHash,
		State:   state,
		Context: a.sm.Context().Clone(),
	})
	if err != nil {
		return fail("failed to persist snapshot", err)
	}

	a.mu.Lock()
	prev := a.lastState
	a.height = height
	a.appHash = appHash
	a.lastState = next
	a.mu.Unlock()

	if demoted {
		if prev != nil {
			a.diffs.enqueue(diffJob{height: height, prev: prev, next: next})
		} else {
			a.logger.Warn("No previous state in memory, skipping diff", zap.Int64("height", height))
		}
	}
	a.guard.CompleteCommit()

	a.observer.ObserveCommit(height, time.Since(start))
	return types.CommitResponse{Data: append([]byte(nil), appHash...)}, nil
}

// Query reads current state or, when req.Data is "diff" (raw or base64),
// the diff journal. Safe for concurrent use.
func (a *Adapter) Query(_ context.Context, req types.QueryRequest) (types.QueryResponse, error) {
	if err := a.guard.CheckConcurrent(); err != nil {
		return types.QueryResponse{}, err
	}
	if isDiffQuery(req.Data) {
		return a.queryDiff(req), nil
	}
	return a.queryState(req), nil
}

func isDiffQuery(data []byte) bool {
	s := string(data)
	return s == diffQueryMarker || s == diffQueryMarkerB64
}

func (a *Adapter) queryDiff(req types.QueryRequest) types.QueryResponse {
	height := req.Height
	if height == 0 {
		height = a.Height() - 1
	}
	patch, err := a.journal.Get(height)
	if errors.Is(err, abcistate.ErrNotFound) {
		return types.QueryResponse{Code: types.CodeNotFound, Log: logDiffNotFound, Height: height}
	}
	if err != nil {
		return invalidQuery(err)
	}
	return resolved(patch, req.Path, height, true)
}

func (a *Adapter) queryState(req types.QueryRequest) types.QueryResponse {
	var state value.Value
	err := call(func() (err error) { state, err = a.sm.Query(); return err })
	if errors.Is(err, abcistate.ErrNotFound) {
		return types.QueryResponse{Code: types.CodeNotFound, Log: logStateNotFound}
	}
	if err != nil {
		return invalidQuery(err)
	}
	return resolved(state, req.Path, a.Height(), false)
}

func resolved(root value.Value, path string, height int64, diff bool) types.QueryResponse {
	v, shown := value.Resolve(root, path)
	data, err := value.Canonical(v)
	if err != nil {
		return invalidQuery(err)
	}
	logLine := fmt.Sprintf("path: '%s', block: %d", shown, height)
	if diff {
		logLine += ", data: " + diffQueryMarker
	}
	return types.QueryResponse{
		Code:   types.CodeOK,
		Log:    logLine,
		Value:  []byte(base64.StdEncoding.EncodeToString(data)),
		Height: height,
	}
}

func invalidQuery(err error) types.QueryResponse {
	return types.QueryResponse{Code: types.CodeInvalidQuery, Log: "invalid query: " + err.Error()}
}

// Flush waits until every scheduled diff has been written or has failed.
func (a *Adapter) Flush(ctx context.Context) error {
	return a.diffs.flush(ctx)
}

// Close drains the diff worker. The adapter must not be used afterwards.
func (a *Adapter) Close() error {
	a.diffs.close()
	return nil
}

// Height returns the last committed height.
func (a *Adapter) Height() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.height
}

// AppHash returns the app hash of the last committed block.
func (a *Adapter) AppHash() []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]byte(nil), a.appHash...)
}

// LifecycleState returns the guard's current state, for diagnostics.
func (a *Adapter) LifecycleState() string {
	return a.guard.State()
}

func (a *Adapter) setCommitted(height int64, appHash, state []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.height = height
	a.appHash = appHash
	a.lastState = state
}

// call runs fn, converting a panic into an ApplicationError.
func call(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = abcistate.NewApplicationError("%v", r)
		}
	}()
	return fn()
}

// asHalt passes HaltErrors through and wraps anything else in one.
func asHalt(height int64, reason string, err error) error {
	if h, ok := abcistate.IsHalt(err); ok {
		return h
	}
	return abcistate.NewHaltError(height, fmt.Sprintf("%s: %v", reason, err))
}
