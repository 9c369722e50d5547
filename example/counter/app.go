// Package counter implements a minimal state machine that counts
// transactions with deferred execution: transactions delivered in block H
// are applied when block H+1 begins.
//
// Transaction payload: a mapping with an optional integer "by" (default 1,
// must be positive).
//
// State: {"count": <applied>, "pending": <delivered, not yet applied>}.
package counter

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sync"

	"github.com/blockberries/abcistate"
	"github.com/blockberries/abcistate/txcodec"
	"github.com/blockberries/abcistate/value"
)

// Compile-time interface check.
var _ abcistate.StateMachine = (*App)(nil)

// App is the counter state machine.
type App struct {
	mu        sync.RWMutex
	count     int64
	pending   int64
	blockTime int64
	ctx       abcistate.Context
}

// New creates a counter. It holds no state until Initialize.
func New() *App {
	return &App{}
}

// Genesis returns the initial state.
func Genesis() value.Value {
	return value.MustParse(`{"count":0,"pending":0}`)
}

func (app *App) Initialize(state value.Value, ctx abcistate.Context, _ bool) error {
	count, err := field(state, "count")
	if err != nil {
		return err
	}
	pending, err := field(state, "pending")
	if err != nil {
		return err
	}

	app.mu.Lock()
	defer app.mu.Unlock()
	app.count, app.pending = count, pending
	app.ctx = ctx.Clone()
	if t, ok := ctx.Data.Get("time"); ok {
		n, _ := t.AsNumber()
		app.blockTime = int64(n)
	}
	return nil
}

func (app *App) Transition(ev abcistate.Event) error {
	switch ev.Type {
	case abcistate.EventBeginBlock:
		app.mu.Lock()
		app.count += app.pending
		app.pending = 0
		app.blockTime = ev.BeginBlock.Time
		app.mu.Unlock()
	case abcistate.EventTransaction:
		by, err := increment(*ev.Tx)
		if err != nil {
			return err
		}
		app.mu.Lock()
		app.pending += by
		app.mu.Unlock()
	}
	return nil
}

func (app *App) Check(tx txcodec.Tx) error {
	_, err := increment(tx)
	return err
}

func (app *App) Commit() (string, error) {
	app.mu.RLock()
	defer app.mu.RUnlock()
	data, err := value.Canonical(app.state())
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func (app *App) Query() (value.Value, error) {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.state(), nil
}

func (app *App) Context() abcistate.Context {
	app.mu.RLock()
	defer app.mu.RUnlock()
	ctx := app.ctx.Clone()
	ctx.Data = value.Mapping(map[string]value.Value{"time": value.Int(app.blockTime)})
	return ctx
}

// Count returns the applied counter value.
func (app *App) Count() int64 {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.count
}

func (app *App) state() value.Value {
	return value.Mapping(map[string]value.Value{
		"count":   value.Int(app.count),
		"pending": value.Int(app.pending),
	})
}

func field(state value.Value, name string) (int64, error) {
	v, ok := state.Get(name)
	if !ok {
		return 0, nil
	}
	n, ok := v.AsNumber()
	if !ok || n != math.Trunc(n) || n < 0 {
		return 0, fmt.Errorf("counter: %s must be a non-negative integer, got %s", name, v)
	}
	return int64(n), nil
}

func increment(tx txcodec.Tx) (int64, error) {
	if tx.Payload.Kind() != value.KindMapping {
		return 0, abcistate.NewApplicationError("payload must be a mapping, got %s", tx.Payload.Kind())
	}
	v, ok := tx.Payload.Get("by")
	if !ok {
		return 1, nil
	}
	n, ok := v.AsNumber()
	if !ok || n != math.Trunc(n) || n < 1 || n > math.MaxInt32 {
		return 0, abcistate.NewApplicationError("by must be a positive integer, got %s", v)
	}
	return int64(n), nil
}

// IncrementTx encodes a transaction that increments by n.
func IncrementTx(n int64, nonce uint32) []byte {
	payload := value.Mapping(nil)
	if n != 1 {
		payload = payload.With("by", value.Int(n))
	}
	tx, err := txcodec.Encode(payload, nonce)
	if err != nil {
		panic(err)
	}
	return tx
}
