package abcitest

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/blockberries/abcistate"
	"github.com/blockberries/abcistate/diffdb"
	"github.com/blockberries/abcistate/types"
	"github.com/blockberries/abcistate/value"
)

// Suite describes the state machine under test.
type Suite struct {
	// Factory returns a fresh state machine.
	Factory func() abcistate.StateMachine
	// Genesis is the initial state handed to InitChain.
	Genesis value.Value
	// ValidTx returns the i-th transaction of a valid sequence. Each must
	// be accepted by CheckTx and DeliverTx in order.
	ValidTx func(i int) []byte
}

// RunComplianceSuite runs a standard compliance test suite against a
// state machine hosted by the adapter, verifying lifecycle, determinism,
// restart and diff behavior.
func RunComplianceSuite(t *testing.T, s Suite) {
	t.Helper()

	newHarness := func(t *testing.T) *Harness {
		return NewHarness(t, s.Factory, s.Genesis)
	}

	t.Run("fresh_info_is_empty", func(t *testing.T) {
		h := newHarness(t)
		resp := h.Info()
		if resp.LastBlockHeight != 0 || len(resp.LastBlockAppHash) != 0 {
			t.Errorf("fresh node reported %+v", resp)
		}
	})

	t.Run("commit_cycle", func(t *testing.T) {
		h := newHarness(t)
		h.InitChain()
		for i := int64(1); i <= 5; i++ {
			res := h.Block(s.ValidTx(int(i - 1)))
			if h.Height() != i {
				t.Fatalf("expected height %d, got %d", i, h.Height())
			}
			if len(res.AppHash) == 0 {
				t.Errorf("height %d: empty app hash", i)
			}
			if !res.DeliverTx[0].IsOK() {
				t.Errorf("height %d: tx rejected: %s", i, res.DeliverTx[0].Log)
			}
		}
	})

	t.Run("deterministic_with_txs", func(t *testing.T) {
		h1, h2 := newHarness(t), newHarness(t)
		h1.InitChain()
		h2.InitChain()
		for i := 0; i < 3; i++ {
			o1 := h1.Block(s.ValidTx(i))
			o2 := h2.Block(s.ValidTx(i))
			if !bytes.Equal(o1.AppHash, o2.AppHash) {
				t.Errorf("height %d: non-deterministic: %x != %x", o1.Height, o1.AppHash, o2.AppHash)
			}
		}
	})

	t.Run("restart_recovers", func(t *testing.T) {
		h, ref := newHarness(t), newHarness(t)
		h.InitChain()
		ref.InitChain()
		var last BlockResult
		for i := 0; i < 3; i++ {
			last = h.Block(s.ValidTx(i))
			ref.Block(s.ValidTx(i))
		}

		info := h.Restart()
		if info.LastBlockHeight != 3 {
			t.Fatalf("expected height 3 after restart, got %d", info.LastBlockHeight)
		}
		if !bytes.Equal(info.LastBlockAppHash, last.AppHash) {
			t.Fatalf("app hash changed across restart: %x != %x", info.LastBlockAppHash, last.AppHash)
		}

		// The restarted node keeps producing the same hashes.
		o1 := h.Block(s.ValidTx(3))
		o2 := ref.Block(s.ValidTx(3))
		if !bytes.Equal(o1.AppHash, o2.AppHash) {
			t.Errorf("diverged after restart: %x != %x", o1.AppHash, o2.AppHash)
		}
	})

	t.Run("restart_mid_block", func(t *testing.T) {
		h := newHarness(t)
		h.InitChain()
		last := h.Block(s.ValidTx(0))
		before := h.Query("")

		ctx := context.Background()
		header := types.Header{ChainID: ChainID, Height: 2, Time: types.TimeToTimestamp(BlockTime(2))}
		if _, err := h.Connection().BeginBlock(ctx, types.BeginBlockRequest{Header: header}); err != nil {
			t.Fatalf("BeginBlock failed: %v", err)
		}
		if _, err := h.Connection().DeliverTx(ctx, types.DeliverTxRequest{Tx: s.ValidTx(1)}); err != nil {
			t.Fatalf("DeliverTx failed: %v", err)
		}

		info := h.Restart()
		if info.LastBlockHeight != 1 {
			t.Fatalf("expected height 1 after mid-block restart, got %d", info.LastBlockHeight)
		}
		if !bytes.Equal(info.LastBlockAppHash, last.AppHash) {
			t.Errorf("app hash changed across mid-block restart: %x != %x", info.LastBlockAppHash, last.AppHash)
		}
		if after := h.Query(""); !before.Equal(after) {
			t.Errorf("uncommitted block leaked into state: %s -> %s", before, after)
		}

		if res := h.Block(s.ValidTx(1)); res.Height != 2 {
			t.Errorf("expected height 2, got %d", res.Height)
		}
	})

	t.Run("check_does_not_mutate", func(t *testing.T) {
		h := newHarness(t)
		h.InitChain()
		h.Block()
		before := h.Query("")
		h.MustAcceptTx(s.ValidTx(0))
		if after := h.Query(""); !before.Equal(after) {
			t.Errorf("CheckTx mutated state: %s -> %s", before, after)
		}
	})

	t.Run("malformed_tx_rejected", func(t *testing.T) {
		h := newHarness(t)
		h.InitChain()
		resp := h.CheckTx([]byte{0xff})
		if resp.Code != types.CodeInvalidTx {
			t.Errorf("expected code %d, got %d", types.CodeInvalidTx, resp.Code)
		}
		res := h.Block([]byte{0, 0, 0, 1})
		if res.DeliverTx[0].Code != types.CodeInvalidTx {
			t.Errorf("expected DeliverTx code %d, got %d", types.CodeInvalidTx, res.DeliverTx[0].Code)
		}
	})

	t.Run("concurrent_checktx_and_query", func(t *testing.T) {
		h := newHarness(t)
		h.InitChain()
		h.Block()

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				if _, err := h.Connection().CheckTx(context.Background(), types.CheckTxRequest{Tx: s.ValidTx(i)}); err != nil {
					t.Errorf("concurrent CheckTx failed: %v", err)
				}
			}()
			go func() {
				defer wg.Done()
				if _, err := h.Connection().Query(context.Background(), types.QueryRequest{}); err != nil {
					t.Errorf("concurrent Query failed: %v", err)
				}
			}()
		}
		wg.Wait()
	})

	t.Run("query_returns_height", func(t *testing.T) {
		h := newHarness(t)
		h.InitChain()
		h.Block()
		h.Block()
		resp := h.QueryRaw(types.QueryRequest{})
		if resp.Height != 2 {
			t.Errorf("expected query height 2, got %d", resp.Height)
		}
	})

	t.Run("diff_reproduces_state", func(t *testing.T) {
		h := newHarness(t)
		h.InitChain()
		var states []value.Value
		for i := 0; i < 4; i++ {
			h.Block(s.ValidTx(i))
			states = append(states, h.Query(""))
		}
		for height := int64(2); height <= 4; height++ {
			prev, next := states[height-2], states[height-1]
			got, err := diffdb.Apply(prev, h.Diff(height))
			if err != nil {
				t.Fatalf("height %d: apply diff: %v", height, err)
			}
			if !got.Equal(next) {
				t.Errorf("height %d: diff applied to %s gives %s, want %s", height, prev, got, next)
			}
		}
	})
}
