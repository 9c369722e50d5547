package abcitest

import (
	"errors"
	"testing"

	"github.com/blockberries/abcistate"
	"github.com/blockberries/abcistate/txcodec"
	"github.com/blockberries/abcistate/value"
)

func emptyTx(i int) []byte {
	tx, err := txcodec.Encode(value.Mapping(nil), uint32(i))
	if err != nil {
		panic(err)
	}
	return tx
}

func TestMockStateMachine_Compliance(t *testing.T) {
	RunComplianceSuite(t, Suite{
		Factory: func() abcistate.StateMachine { return &MockStateMachine{} },
		Genesis: value.MustParse(`{"n":1}`),
		ValidTx: emptyTx,
	})
}

func TestMockStateMachine_Hooks(t *testing.T) {
	var mock *MockStateMachine
	h := NewHarness(t, func() abcistate.StateMachine {
		mock = &MockStateMachine{
			CheckFn: func(tx txcodec.Tx) error {
				if tx.Nonce == 13 {
					return errors.New("unlucky")
				}
				return nil
			},
		}
		return mock
	}, value.Mapping(nil))
	h.InitChain(Validator(1, 10))

	h.MustAcceptTx(emptyTx(1))
	h.MustRejectTx(emptyTx(13))
	if got := h.CheckTx(emptyTx(13)).Log; got != "unlucky" {
		t.Errorf("unexpected log %q", got)
	}

	res := h.Block(emptyTx(2), emptyTx(3))
	if len(res.ValidatorUpdates) != 1 || res.ValidatorUpdates[0].Power.Uint64() != 10 {
		t.Errorf("unexpected validator updates %+v", res.ValidatorUpdates)
	}
	// begin-block, two transactions, block.
	if n := mock.TransitionCalls.Load(); n != 4 {
		t.Errorf("expected 4 transitions, got %d", n)
	}
	if n := mock.CommitCalls.Load(); n != 1 {
		t.Errorf("expected 1 commit, got %d", n)
	}
	if string(res.AppHash) != "\x01" {
		t.Errorf("unexpected app hash %x", res.AppHash)
	}
}
