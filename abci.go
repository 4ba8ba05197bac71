// Package abci defines the application side of the Application
// Blockchain Interface: the callbacks a consensus engine drives over
// a connection, one request at a time.
//
// The core [Application] interface is required. [Flusher] is an
// optional capability discovered via Go type assertion.
package abci

import (
	"context"

	"github.com/blockberries/abci/types"
)

// Application is the interface every ABCI application implements.
//
// Within one connection the server delivers requests strictly in
// arrival order and never invokes two callbacks concurrently. Separate
// connections may call in parallel, so an application shared between
// connections must synchronize its own state.
//
// A returned error (or a panic) is an application fault: the server
// closes the connection that carried the request.
type Application interface {
	// Info reports the application's last committed state so the
	// engine can resume from it.
	Info(ctx context.Context, req types.RequestInfo) (types.ResponseInfo, error)

	// SetOption sets a non-consensus option.
	SetOption(ctx context.Context, req types.RequestSetOption) (types.ResponseSetOption, error)

	// Query reads application state. Reads should see the last
	// committed state.
	Query(ctx context.Context, req types.RequestQuery) (types.ResponseQuery, error)

	// Echo returns the request message.
	Echo(ctx context.Context, req types.RequestEcho) (types.ResponseEcho, error)

	// CheckTx gate-checks a transaction before it enters the mempool.
	CheckTx(ctx context.Context, req types.RequestCheckTx) (types.ResponseCheckTx, error)

	// InitChain is called once at genesis.
	InitChain(ctx context.Context, req types.RequestInitChain) (types.ResponseInitChain, error)

	// BeginBlock opens a block.
	BeginBlock(ctx context.Context, req types.RequestBeginBlock) (types.ResponseBeginBlock, error)

	// DeliverTx executes one transaction of the open block.
	DeliverTx(ctx context.Context, req types.RequestDeliverTx) (types.ResponseDeliverTx, error)

	// EndBlock closes the block and may update the validator set.
	EndBlock(ctx context.Context, req types.RequestEndBlock) (types.ResponseEndBlock, error)

	// Commit persists the block's state changes and returns the
	// resulting state root.
	Commit(ctx context.Context) (types.ResponseCommit, error)
}

// Flusher is implemented by applications that want to observe Flush
// requests. The server invokes it after every response queued before
// the Flush has been written out.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Connection is a transport-agnostic connection to an ABCI
// application, seen from the consensus engine. Socket and gRPC clients
// and in-process adapters implement it.
type Connection interface {
	Application

	// Flush waits until every earlier request has been answered.
	Flush(ctx context.Context) error

	// Close terminates the connection.
	Close() error
}

// BaseApplication implements every callback with an empty success
// response. Embed it to implement only the callbacks you need.
type BaseApplication struct{}

var _ Application = BaseApplication{}

func (BaseApplication) Info(context.Context, types.RequestInfo) (types.ResponseInfo, error) {
	return types.ResponseInfo{}, nil
}

func (BaseApplication) SetOption(context.Context, types.RequestSetOption) (types.ResponseSetOption, error) {
	return types.ResponseSetOption{}, nil
}

func (BaseApplication) Query(context.Context, types.RequestQuery) (types.ResponseQuery, error) {
	return types.ResponseQuery{}, nil
}

func (BaseApplication) Echo(_ context.Context, req types.RequestEcho) (types.ResponseEcho, error) {
	return types.ResponseEcho{Message: req.Message}, nil
}

func (BaseApplication) CheckTx(context.Context, types.RequestCheckTx) (types.ResponseCheckTx, error) {
	return types.ResponseCheckTx{}, nil
}

func (BaseApplication) InitChain(context.Context, types.RequestInitChain) (types.ResponseInitChain, error) {
	return types.ResponseInitChain{}, nil
}

func (BaseApplication) BeginBlock(context.Context, types.RequestBeginBlock) (types.ResponseBeginBlock, error) {
	return types.ResponseBeginBlock{}, nil
}

func (BaseApplication) DeliverTx(context.Context, types.RequestDeliverTx) (types.ResponseDeliverTx, error) {
	return types.ResponseDeliverTx{}, nil
}

func (BaseApplication) EndBlock(context.Context, types.RequestEndBlock) (types.ResponseEndBlock, error) {
	return types.ResponseEndBlock{}, nil
}

func (BaseApplication) Commit(context.Context) (types.ResponseCommit, error) {
	return types.ResponseCommit{}, nil
}
