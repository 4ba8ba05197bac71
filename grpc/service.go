package abcigrpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/blockberries/abci/types"
)

const serviceName = "abci.ABCIApplication"

// ABCIApplicationServer is the server-side interface for the ABCI gRPC
// service. Every method is unary and mirrors one socket request kind.
type ABCIApplicationServer interface {
	Echo(context.Context, *types.RequestEcho) (*types.ResponseEcho, error)
	Flush(context.Context, *types.RequestFlush) (*types.ResponseFlush, error)
	Info(context.Context, *types.RequestInfo) (*types.ResponseInfo, error)
	SetOption(context.Context, *types.RequestSetOption) (*types.ResponseSetOption, error)
	InitChain(context.Context, *types.RequestInitChain) (*types.ResponseInitChain, error)
	Query(context.Context, *types.RequestQuery) (*types.ResponseQuery, error)
	BeginBlock(context.Context, *types.RequestBeginBlock) (*types.ResponseBeginBlock, error)
	CheckTx(context.Context, *types.RequestCheckTx) (*types.ResponseCheckTx, error)
	DeliverTx(context.Context, *types.RequestDeliverTx) (*types.ResponseDeliverTx, error)
	EndBlock(context.Context, *types.RequestEndBlock) (*types.ResponseEndBlock, error)
	Commit(context.Context, *types.RequestCommit) (*types.ResponseCommit, error)
}

// RegisterABCIApplicationServer registers srv on a gRPC server.
func RegisterABCIApplicationServer(s grpc.ServiceRegistrar, srv ABCIApplicationServer) {
	s.RegisterService(&serviceDesc, srv)
}

// unary builds a method handler that decodes a *Req and calls fn.
func unary[Req any, Resp any](fn func(ABCIApplicationServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := new(Req)
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return fn(srv.(ABCIApplicationServer), ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(methodOf(req))}
		return interceptor(ctx, req, info, func(ctx context.Context, r any) (any, error) {
			return fn(srv.(ABCIApplicationServer), ctx, r.(*Req))
		})
	}
}

// methodOf names the RPC serving req.
func methodOf(req any) string {
	if r, ok := req.(interface{ Kind() types.Kind }); ok {
		return r.Kind().String()
	}
	return ""
}

// fullMethod builds the full gRPC method path.
func fullMethod(method string) string {
	return "/" + serviceName + "/" + method
}

// serviceDesc is the manual gRPC service descriptor for ABCI.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ABCIApplicationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Echo", Handler: unary(ABCIApplicationServer.Echo)},
		{MethodName: "Flush", Handler: unary(ABCIApplicationServer.Flush)},
		{MethodName: "Info", Handler: unary(ABCIApplicationServer.Info)},
		{MethodName: "SetOption", Handler: unary(ABCIApplicationServer.SetOption)},
		{MethodName: "InitChain", Handler: unary(ABCIApplicationServer.InitChain)},
		{MethodName: "Query", Handler: unary(ABCIApplicationServer.Query)},
		{MethodName: "BeginBlock", Handler: unary(ABCIApplicationServer.BeginBlock)},
		{MethodName: "CheckTx", Handler: unary(ABCIApplicationServer.CheckTx)},
		{MethodName: "DeliverTx", Handler: unary(ABCIApplicationServer.DeliverTx)},
		{MethodName: "EndBlock", Handler: unary(ABCIApplicationServer.EndBlock)},
		{MethodName: "Commit", Handler: unary(ABCIApplicationServer.Commit)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "abci/types.cram",
}
