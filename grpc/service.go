package abcigrpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/blockberries/abcistate/types"
)

const serviceName = "abcistate.v1.ABCIService"

// ABCIServiceServer is the server-side interface for the ABCI gRPC service.
type ABCIServiceServer interface {
	Info(context.Context, *types.InfoRequest) (*types.InfoResponse, error)
	InitChain(context.Context, *types.InitChainRequest) (*types.InitChainResponse, error)
	CheckTx(context.Context, *types.CheckTxRequest) (*types.CheckTxResponse, error)
	BeginBlock(context.Context, *types.BeginBlockRequest) (*types.BeginBlockResponse, error)
	DeliverTx(context.Context, *types.DeliverTxRequest) (*types.DeliverTxResponse, error)
	EndBlock(context.Context, *types.EndBlockRequest) (*types.EndBlockResponse, error)
	Commit(context.Context, *types.CommitRequest) (*types.CommitResponse, error)
	Query(context.Context, *types.QueryRequest) (*types.QueryResponse, error)
}

// RegisterABCIServiceServer registers the ABCIServiceServer on a gRPC server.
func RegisterABCIServiceServer(s *grpc.Server, srv ABCIServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

// --- Handler functions ---

// unary builds a method handler that decodes a Req and dispatches to call.
// Interceptors are honored when installed on the server.
func unary[Req any, Resp any](method string, call func(ABCIServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := new(Req)
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ABCIServiceServer), ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		handler := func(ctx context.Context, r any) (any, error) {
			return call(srv.(ABCIServiceServer), ctx, r.(*Req))
		}
		return interceptor(ctx, req, info, handler)
	}
}

// fullMethod builds the full gRPC method path.
func fullMethod(method string) string {
	return fmt.Sprintf("/%s/%s", serviceName, method)
}

// serviceDesc is the manual gRPC service descriptor.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ABCIServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Info", Handler: unary("Info", ABCIServiceServer.Info)},
		{MethodName: "InitChain", Handler: unary("InitChain", ABCIServiceServer.InitChain)},
		{MethodName: "CheckTx", Handler: unary("CheckTx", ABCIServiceServer.CheckTx)},
		{MethodName: "BeginBlock", Handler: unary("BeginBlock", ABCIServiceServer.BeginBlock)},
		{MethodName: "DeliverTx", Handler: unary("DeliverTx", ABCIServiceServer.DeliverTx)},
		{MethodName: "EndBlock", Handler: unary("EndBlock", ABCIServiceServer.EndBlock)},
		{MethodName: "Commit", Handler: unary("Commit", ABCIServiceServer.Commit)},
		{MethodName: "Query", Handler: unary("Query", ABCIServiceServer.Query)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "abcistate/v1/service.cram",
}
