package abcigrpc

import (
	"context"
	"net"
	"sync/atomic"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/blockberries/abcistate"
	"github.com/blockberries/abcistate/log"
	"github.com/blockberries/abcistate/types"
)

// Compile-time interface check.
var _ ABCIServiceServer = (*GRPCServer)(nil)

// HaltHandler is invoked once, with the first HaltError the application
// returns.
type HaltHandler func(*abcistate.HaltError)

// GRPCServer exposes an Application as a gRPC service. Domain types are
// serialized directly via cramberry.
//
// After the first HaltError every RPC fails with codes.Aborted.
type GRPCServer struct {
	app    abcistate.Application
	logger *zap.Logger
	onHalt HaltHandler
	halted atomic.Pointer[abcistate.HaltError]
}

// ServerOption configures a GRPCServer.
type ServerOption func(*GRPCServer)

// WithLogger sets the server logger.
func WithLogger(l *zap.Logger) ServerOption {
	return func(s *GRPCServer) { s.logger = l }
}

// WithHaltHandler replaces the default halt handler, which logs at fatal
// level and exits the process.
func WithHaltHandler(fn HaltHandler) ServerOption {
	return func(s *GRPCServer) { s.onHalt = fn }
}

// NewGRPCServer creates a gRPC server wrapping the given application.
func NewGRPCServer(app abcistate.Application, opts ...ServerOption) *GRPCServer {
	s := &GRPCServer{app: app, logger: log.L()}
	for _, opt := range opts {
		opt(s)
	}
	if s.onHalt == nil {
		s.onHalt = func(h *abcistate.HaltError) {
			s.logger.Fatal("Application halted", zap.Int64("height", h.Height), zap.String("reason", h.Reason))
		}
	}
	return s
}

// Register adds the ABCI service to a gRPC server.
func (s *GRPCServer) Register(gs *grpc.Server) {
	RegisterABCIServiceServer(gs, s)
}

// Serve starts a gRPC server on the given listener.
func (s *GRPCServer) Serve(lis net.Listener, opts ...grpc.ServerOption) error {
	gs := grpc.NewServer(opts...)
	s.Register(gs)
	return gs.Serve(lis)
}

// Halted returns the HaltError that stopped the server, if any.
func (s *GRPCServer) Halted() *abcistate.HaltError {
	return s.halted.Load()
}

func (s *GRPCServer) checkHalted() error {
	if h := s.halted.Load(); h != nil {
		return status.Error(codes.Aborted, h.Error())
	}
	return nil
}

// fail converts err to a status and, for the first HaltError, fires the
// halt handler.
func (s *GRPCServer) fail(err error) error {
	if h, ok := abcistate.IsHalt(err); ok {
		if s.halted.CompareAndSwap(nil, h) {
			s.onHalt(h)
		}
	}
	return toStatus(err)
}

// handle runs one RPC against the application.
func handle[Req any, Resp any](s *GRPCServer, ctx context.Context, req *Req,
	call func(context.Context, Req) (Resp, error)) (*Resp, error) {
	if err := s.checkHalted(); err != nil {
		return nil, err
	}
	resp, err := call(ctx, *req)
	if err != nil {
		return nil, s.fail(err)
	}
	return &resp, nil
}

func (s *GRPCServer) Info(ctx context.Context, req *types.InfoRequest) (*types.InfoResponse, error) {
	return handle(s, ctx, req, s.app.Info)
}

func (s *GRPCServer) InitChain(ctx context.Context, req *types.InitChainRequest) (*types.InitChainResponse, error) {
	return handle(s, ctx, req, s.app.InitChain)
}

func (s *GRPCServer) CheckTx(ctx context.Context, req *types.CheckTxRequest) (*types.CheckTxResponse, error) {
	return handle(s, ctx, req, s.app.CheckTx)
}

func (s *GRPCServer) BeginBlock(ctx context.Context, req *types.BeginBlockRequest) (*types.BeginBlockResponse, error) {
	return handle(s, ctx, req, s.app.BeginBlock)
}

func (s *GRPCServer) DeliverTx(ctx context.Context, req *types.DeliverTxRequest) (*types.DeliverTxResponse, error) {
	return handle(s, ctx, req, s.app.DeliverTx)
}

func (s *GRPCServer) EndBlock(ctx context.Context, req *types.EndBlockRequest) (*types.EndBlockResponse, error) {
	return handle(s, ctx, req, s.app.EndBlock)
}

func (s *GRPCServer) Commit(ctx context.Context, req *types.CommitRequest) (*types.CommitResponse, error) {
	return handle(s, ctx, req, func(ctx context.Context, _ types.CommitRequest) (types.CommitResponse, error) {
		return s.app.Commit(ctx)
	})
}

func (s *GRPCServer) Query(ctx context.Context, req *types.QueryRequest) (*types.QueryResponse, error) {
	return handle(s, ctx, req, s.app.Query)
}
