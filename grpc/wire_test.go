package abcigrpc

import (
	"errors"
	"testing"

	"github.com/blockberries/abcistate"
)

func TestStatusRoundTrip(t *testing.T) {
	h := abcistate.NewHaltError(12, "failed to persist snapshot: disk full")
	got, ok := abcistate.IsHalt(fromStatus(toStatus(h)))
	if !ok {
		t.Fatal("expected HaltError")
	}
	if got.Height != 12 || got.Reason != h.Reason {
		t.Fatalf("unexpected halt %+v", got)
	}

	if err := fromStatus(toStatus(abcistate.ErrNotReady)); !errors.Is(err, abcistate.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}

	other := errors.New("chain already initialized at height 3")
	if err := fromStatus(toStatus(other)); err == nil || errors.Is(err, abcistate.ErrNotReady) {
		t.Fatalf("unexpected mapping %v", err)
	}

	if toStatus(nil) != nil {
		t.Fatal("expected nil status for nil error")
	}
}

func TestParseHalt_Malformed(t *testing.T) {
	h := parseHalt("something else")
	if h.Height != 0 || h.Reason != "something else" {
		t.Fatalf("unexpected halt %+v", h)
	}
}
