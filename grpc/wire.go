package abcigrpc

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/blockberries/abcistate"
)

// toStatus maps adapter errors onto gRPC status codes so the client can
// rebuild them.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if h, ok := abcistate.IsHalt(err); ok {
		return status.Error(codes.Aborted, h.Error())
	}
	if errors.Is(err, abcistate.ErrNotReady) {
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// fromStatus is the inverse of toStatus. Errors that did not come from
// the server (dial failures, deadlines) are returned unchanged.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Aborted:
		return parseHalt(st.Message())
	case codes.FailedPrecondition:
		if st.Message() == abcistate.ErrNotReady.Error() {
			return abcistate.ErrNotReady
		}
	}
	return err
}

func parseHalt(msg string) *abcistate.HaltError {
	var height int64
	if _, err := fmt.Sscanf(msg, "HALT at height %d:", &height); err != nil {
		return abcistate.NewHaltError(0, msg)
	}
	_, reason, _ := strings.Cut(msg, ": ")
	return abcistate.NewHaltError(height, reason)
}
