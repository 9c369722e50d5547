package abcistate

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports a missing state or diff record.
	ErrNotFound = errors.New("not found")

	// ErrNotReady is returned by CheckTx and Query before the adapter has
	// been initialized through Info or InitChain.
	ErrNotReady = errors.New("adapter not initialized")
)

// ApplicationError is a rejection raised by the state machine. Its reason
// is reported to the client verbatim.
type ApplicationError struct {
	Reason string
}

func (e *ApplicationError) Error() string { return e.Reason }

// NewApplicationError creates a new ApplicationError.
func NewApplicationError(format string, args ...any) *ApplicationError {
	return &ApplicationError{Reason: fmt.Sprintf(format, args...)}
}

// HaltError signals an irrecoverable inconsistency: the node must stop
// rather than risk diverging from the network.
//
// When a transport receives a HaltError from the adapter it must stop
// serving, log the error, and exit.
type HaltError struct {
	Reason string
	Height int64
}

func (e *HaltError) Error() string {
	return fmt.Sprintf("HALT at height %d: %s", e.Height, e.Reason)
}

// NewHaltError creates a new HaltError.
func NewHaltError(height int64, reason string) *HaltError {
	return &HaltError{Height: height, Reason: reason}
}

// IsHalt checks whether an error is a HaltError and returns it.
func IsHalt(err error) (*HaltError, bool) {
	var h *HaltError
	if errors.As(err, &h) {
		return h, true
	}
	return nil, false
}
