package abcigrpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/blockberries/abci"
	"github.com/blockberries/abci/types"
)

// Compile-time interface check.
var _ abci.Connection = (*Client)(nil)

// Client implements abci.Connection for remote applications over
// gRPC using cramberry serialization.
type Client struct {
	cc *grpc.ClientConn
}

// Dial creates a client for target. The connection is established
// lazily on the first call; callers supply transport credentials.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append(opts, grpc.WithDefaultCallOptions(
		grpc.ForceCodecV2(Codec{}),
	))
	cc, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("abcigrpc: dial %s: %w", target, err)
	}
	return &Client{cc: cc}, nil
}

func (c *Client) Close() error {
	return c.cc.Close()
}

func invoke[Resp any](ctx context.Context, c *Client, method string, req any) (Resp, error) {
	resp := new(Resp)
	if err := c.cc.Invoke(ctx, fullMethod(method), req, resp); err != nil {
		var zero Resp
		return zero, err
	}
	return *resp, nil
}

func (c *Client) Echo(ctx context.Context, req types.RequestEcho) (types.ResponseEcho, error) {
	return invoke[types.ResponseEcho](ctx, c, "Echo", &req)
}

func (c *Client) Flush(ctx context.Context) error {
	_, err := invoke[types.ResponseFlush](ctx, c, "Flush", &types.RequestFlush{})
	return err
}

func (c *Client) Info(ctx context.Context, req types.RequestInfo) (types.ResponseInfo, error) {
	return invoke[types.ResponseInfo](ctx, c, "Info", &req)
}

func (c *Client) SetOption(ctx context.Context, req types.RequestSetOption) (types.ResponseSetOption, error) {
	return invoke[types.ResponseSetOption](ctx, c, "SetOption", &req)
}

func (c *Client) InitChain(ctx context.Context, req types.RequestInitChain) (types.ResponseInitChain, error) {
	return invoke[types.ResponseInitChain](ctx, c, "InitChain", &req)
}

func (c *Client) Query(ctx context.Context, req types.RequestQuery) (types.ResponseQuery, error) {
	return invoke[types.ResponseQuery](ctx, c, "Query", &req)
}

func (c *Client) BeginBlock(ctx context.Context, req types.RequestBeginBlock) (types.ResponseBeginBlock, error) {
	return invoke[types.ResponseBeginBlock](ctx, c, "BeginBlock", &req)
}

func (c *Client) CheckTx(ctx context.Context, req types.RequestCheckTx) (types.ResponseCheckTx, error) {
	return invoke[types.ResponseCheckTx](ctx, c, "CheckTx", &req)
}

func (c *Client) DeliverTx(ctx context.Context, req types.RequestDeliverTx) (types.ResponseDeliverTx, error) {
	return invoke[types.ResponseDeliverTx](ctx, c, "DeliverTx", &req)
}

func (c *Client) EndBlock(ctx context.Context, req types.RequestEndBlock) (types.ResponseEndBlock, error) {
	return invoke[types.ResponseEndBlock](ctx, c, "EndBlock", &req)
}

func (c *Client) Commit(ctx context.Context) (types.ResponseCommit, error) {
	return invoke[types.ResponseCommit](ctx, c, "Commit", &types.RequestCommit{})
}
