package abcistate

import (
	"errors"
	"fmt"
	"testing"
)

func TestHaltError(t *testing.T) {
	err := NewHaltError(42, "snapshot promotion failed")
	if err.Height != 42 {
		t.Errorf("expected height 42, got %d", err.Height)
	}
	if err.Reason != "snapshot promotion failed" {
		t.Errorf("unexpected reason: %s", err.Reason)
	}

	expected := "HALT at height 42: snapshot promotion failed"
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}
}

func TestIsHalt(t *testing.T) {
	haltErr := NewHaltError(10, "divergence")

	// Direct.
	h, ok := IsHalt(haltErr)
	if !ok {
		t.Fatal("expected IsHalt to return true")
	}
	if h.Height != 10 {
		t.Errorf("expected height 10, got %d", h.Height)
	}

	// Wrapped.
	wrapped := fmt.Errorf("wrapped: %w", haltErr)
	h2, ok2 := IsHalt(wrapped)
	if !ok2 {
		t.Fatal("expected IsHalt to unwrap wrapped error")
	}
	if h2.Height != 10 {
		t.Errorf("expected height 10, got %d", h2.Height)
	}

	// Non-halt error.
	_, ok3 := IsHalt(fmt.Errorf("just a regular error"))
	if ok3 {
		t.Fatal("expected IsHalt to return false for non-halt error")
	}

	// Nil.
	_, ok4 := IsHalt(nil)
	if ok4 {
		t.Fatal("expected IsHalt to return false for nil")
	}
}

func TestApplicationError(t *testing.T) {
	err := NewApplicationError("nonce %d already used", 3)
	if err.Error() != "nonce 3 already used" {
		t.Errorf("unexpected message %q", err.Error())
	}
	var appErr *ApplicationError
	if !errors.As(fmt.Errorf("ctx: %w", err), &appErr) {
		t.Fatal("expected errors.As to find ApplicationError")
	}
}

func TestErrNotFound_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("height 7: %w", ErrNotFound)
	if !errors.Is(wrapped, ErrNotFound) {
		t.Fatal("expected wrapped ErrNotFound to match")
	}
	if errors.Is(wrapped, ErrNotReady) {
		t.Fatal("unexpected match with ErrNotReady")
	}
}

func TestContext_Clone(t *testing.T) {
	c := Context{Validators: map[string]int64{"a": 1}}
	cp := c.Clone()
	cp.Validators["a"] = 2
	if c.Validators["a"] != 1 {
		t.Fatal("clone shares validator map")
	}
	if (Context{}).Clone().Validators != nil {
		t.Fatal("expected nil validators to stay nil")
	}
}
