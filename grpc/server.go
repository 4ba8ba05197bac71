package abcigrpc

import (
	"context"
	"errors"
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/blockberries/abci"
	"github.com/blockberries/abci/server"
	"github.com/blockberries/abci/types"
)

// Compile-time interface check.
var _ ABCIApplicationServer = (*GRPCServer)(nil)

// GRPCServer serves an ABCI application over gRPC. Calls go through
// the same dispatcher as the socket server, so panics and callback
// errors become faults. A fault is reported as codes.Internal; unlike
// a socket session, the gRPC connection stays open.
//
// Unary calls may arrive concurrently. Ordering of consensus calls is
// the caller's responsibility.
type GRPCServer struct {
	disp *server.Dispatcher
	log  zerolog.Logger
}

// Option configures a GRPCServer.
type Option func(*GRPCServer)

// WithLogger sets the logger used for faults.
func WithLogger(l zerolog.Logger) Option {
	return func(s *GRPCServer) { s.log = l }
}

// NewGRPCServer creates a gRPC server wrapping the given application.
func NewGRPCServer(app abci.Application, opts ...Option) *GRPCServer {
	s := &GRPCServer{
		disp: server.NewDispatcher(app),
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("component", "abci-grpc").Logger()
	return s
}

// Register adds the ABCI service to a gRPC server.
func (s *GRPCServer) Register(gs *grpc.Server) {
	RegisterABCIApplicationServer(gs, s)
}

// Serve starts a gRPC server on the given listener.
func (s *GRPCServer) Serve(lis net.Listener, opts ...grpc.ServerOption) error {
	gs := grpc.NewServer(opts...)
	s.Register(gs)
	return gs.Serve(lis)
}

// Dispatcher returns the underlying dispatcher for advanced use.
func (s *GRPCServer) Dispatcher() *server.Dispatcher {
	return s.disp
}

func dispatch[T types.Response](ctx context.Context, s *GRPCServer, req types.Request) (*T, error) {
	resp, err := s.disp.Dispatch(ctx, req)
	if err != nil {
		return nil, s.status(req.Kind(), err)
	}
	out, ok := resp.(T)
	if !ok {
		return nil, status.Errorf(codes.Internal, "unexpected response %T for %s", resp, req.Kind())
	}
	return &out, nil
}

func (s *GRPCServer) status(kind types.Kind, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, server.ErrUnknownRequest):
		return status.Error(codes.Unimplemented, err.Error())
	}
	if fault, ok := abci.IsFault(err); ok {
		s.log.Error().Err(fault).Str("kind", kind.String()).Msg("application fault")
	}
	return status.Error(codes.Internal, err.Error())
}

func (s *GRPCServer) Echo(ctx context.Context, req *types.RequestEcho) (*types.ResponseEcho, error) {
	return dispatch[types.ResponseEcho](ctx, s, *req)
}

func (s *GRPCServer) Flush(ctx context.Context, req *types.RequestFlush) (*types.ResponseFlush, error) {
	return dispatch[types.ResponseFlush](ctx, s, *req)
}

func (s *GRPCServer) Info(ctx context.Context, req *types.RequestInfo) (*types.ResponseInfo, error) {
	return dispatch[types.ResponseInfo](ctx, s, *req)
}

func (s *GRPCServer) SetOption(ctx context.Context, req *types.RequestSetOption) (*types.ResponseSetOption, error) {
	return dispatch[types.ResponseSetOption](ctx, s, *req)
}

func (s *GRPCServer) InitChain(ctx context.Context, req *types.RequestInitChain) (*types.ResponseInitChain, error) {
	return dispatch[types.ResponseInitChain](ctx, s, *req)
}

func (s *GRPCServer) Query(ctx context.Context, req *types.RequestQuery) (*types.ResponseQuery, error) {
	return dispatch[types.ResponseQuery](ctx, s, *req)
}

func (s *GRPCServer) BeginBlock(ctx context.Context, req *types.RequestBeginBlock) (*types.ResponseBeginBlock, error) {
	return dispatch[types.ResponseBeginBlock](ctx, s, *req)
}

func (s *GRPCServer) CheckTx(ctx context.Context, req *types.RequestCheckTx) (*types.ResponseCheckTx, error) {
	return dispatch[types.ResponseCheckTx](ctx, s, *req)
}

func (s *GRPCServer) DeliverTx(ctx context.Context, req *types.RequestDeliverTx) (*types.ResponseDeliverTx, error) {
	return dispatch[types.ResponseDeliverTx](ctx, s, *req)
}

func (s *GRPCServer) EndBlock(ctx context.Context, req *types.RequestEndBlock) (*types.ResponseEndBlock, error) {
	return dispatch[types.ResponseEndBlock](ctx, s, *req)
}

func (s *GRPCServer) Commit(ctx context.Context, req *types.RequestCommit) (*types.ResponseCommit, error) {
	return dispatch[types.ResponseCommit](ctx, s, *req)
}
