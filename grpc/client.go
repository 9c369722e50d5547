package abcigrpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/blockberries/abcistate"
	"github.com/blockberries/abcistate/server"
	"github.com/blockberries/abcistate/types"
)

// Compile-time interface check.
var _ abcistate.Connection = (*Client)(nil)

// Client implements abcistate.Connection for a remote adapter over gRPC
// using cramberry serialization.
//
// The client mirrors the block lifecycle locally so that misordered block
// calls fail fast instead of reaching the remote node. CheckTx and Query
// are passed through; readiness is the remote node's call.
type Client struct {
	cc    *grpc.ClientConn
	guard *server.LifecycleGuard
}

// Dial connects to a remote adapter.
func Dial(ctx context.Context, addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append(opts, grpc.WithDefaultCallOptions(
		grpc.ForceCodec(CramberryCodec{}),
	))
	cc, err := grpc.DialContext(ctx, addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("abcistate client: dial %s: %w", addr, err)
	}
	return &Client{
		cc:    cc,
		guard: server.NewLifecycleGuard(),
	}, nil
}

func (c *Client) Close() error {
	return c.cc.Close()
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	return fromStatus(c.cc.Invoke(ctx, fullMethod(method), req, resp))
}

func (c *Client) Info(ctx context.Context, req types.InfoRequest) (types.InfoResponse, error) {
	acquired := c.guard.TryAcquireInit()

	resp := new(types.InfoResponse)
	err := c.invoke(ctx, "Info", &req, resp)
	if acquired {
		// A remote node with committed state is initialized; otherwise
		// InitChain must follow.
		if err != nil || resp.LastBlockHeight == 0 {
			c.guard.FailInit()
		} else {
			c.guard.CompleteInit()
		}
	}
	if err != nil {
		return types.InfoResponse{}, err
	}
	return *resp, nil
}

func (c *Client) InitChain(ctx context.Context, req types.InitChainRequest) (types.InitChainResponse, error) {
	c.guard.AcquireInit("InitChain")

	resp := new(types.InitChainResponse)
	if err := c.invoke(ctx, "InitChain", &req, resp); err != nil {
		c.guard.FailInit()
		return types.InitChainResponse{}, err
	}
	c.guard.CompleteInit()
	return *resp, nil
}

func (c *Client) CheckTx(ctx context.Context, req types.CheckTxRequest) (types.CheckTxResponse, error) {
	resp := new(types.CheckTxResponse)
	if err := c.invoke(ctx, "CheckTx", &req, resp); err != nil {
		return types.CheckTxResponse{}, err
	}
	return *resp, nil
}

func (c *Client) BeginBlock(ctx context.Context, req types.BeginBlockRequest) (types.BeginBlockResponse, error) {
	c.guard.AcquireBeginBlock()

	resp := new(types.BeginBlockResponse)
	if err := c.invoke(ctx, "BeginBlock", &req, resp); err != nil {
		c.guard.FailBeginBlock()
		return types.BeginBlockResponse{}, err
	}
	c.guard.CompleteBeginBlock()
	return *resp, nil
}

func (c *Client) DeliverTx(ctx context.Context, req types.DeliverTxRequest) (types.DeliverTxResponse, error) {
	c.guard.AcquireDeliverTx()
	defer c.guard.CompleteDeliverTx()

	resp := new(types.DeliverTxResponse)
	if err := c.invoke(ctx, "DeliverTx", &req, resp); err != nil {
		return types.DeliverTxResponse{}, err
	}
	return *resp, nil
}

func (c *Client) EndBlock(ctx context.Context, req types.EndBlockRequest) (types.EndBlockResponse, error) {
	c.guard.AcquireEndBlock()

	resp := new(types.EndBlockResponse)
	if err := c.invoke(ctx, "EndBlock", &req, resp); err != nil {
		c.guard.FailEndBlock()
		return types.EndBlockResponse{}, err
	}
	c.guard.CompleteEndBlock()
	return *resp, nil
}

func (c *Client) Commit(ctx context.Context) (types.CommitResponse, error) {
	c.guard.AcquireCommit()

	resp := new(types.CommitResponse)
	if err := c.invoke(ctx, "Commit", &types.CommitRequest{}, resp); err != nil {
		c.guard.FailCommit()
		return types.CommitResponse{}, err
	}
	c.guard.CompleteCommit()
	return *resp, nil
}

func (c *Client) Query(ctx context.Context, req types.QueryRequest) (types.QueryResponse, error) {
	resp := new(types.QueryResponse)
	if err := c.invoke(ctx, "Query", &req, resp); err != nil {
		return types.QueryResponse{}, err
	}
	return *resp, nil
}
