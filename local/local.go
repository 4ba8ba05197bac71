// Package local provides an in-process ABCI connection.
//
// For applications compiled into the same binary as the consensus
// engine, this adapter drives the application through the same
// dispatcher the socket server uses, with no serialization overhead.
// Calls are serialized exactly as on one socket connection.
package local

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/blockberries/abci"
	"github.com/blockberries/abci/server"
	"github.com/blockberries/abci/types"
)

// ErrClosed is returned by calls after Close.
var ErrClosed = errors.New("local: connection closed")

// Compile-time interface check.
var _ abci.Connection = (*Connection)(nil)

// Connection is an in-process connection to an application.
type Connection struct {
	disp  *server.Dispatcher
	cycle *server.CycleTracker

	mu     sync.Mutex
	closed bool
}

// NewConnection creates an in-process connection wrapping app.
func NewConnection(app abci.Application) *Connection {
	return &Connection{
		disp:  server.NewDispatcher(app),
		cycle: server.NewCycleTracker(),
	}
}

// Cycle returns the block-cycle tracker observing this connection.
func (c *Connection) Cycle() *server.CycleTracker { return c.cycle }

// Dispatcher returns the underlying dispatcher for advanced use cases.
func (c *Connection) Dispatcher() *server.Dispatcher { return c.disp }

// Do dispatches one request. Block-cycle violations are observed but
// never rejected.
func (c *Connection) Do(ctx context.Context, req types.Request) (types.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	_ = c.cycle.Observe(req.Kind())
	return c.disp.Dispatch(ctx, req)
}

func do[T types.Response](ctx context.Context, c *Connection, req types.Request) (T, error) {
	var zero T
	resp, err := c.Do(ctx, req)
	if err != nil {
		return zero, err
	}
	out, ok := resp.(T)
	if !ok {
		return zero, fmt.Errorf("local: unexpected response %T for %s", resp, req.Kind())
	}
	return out, nil
}

func (c *Connection) Echo(ctx context.Context, req types.RequestEcho) (types.ResponseEcho, error) {
	return do[types.ResponseEcho](ctx, c, req)
}

func (c *Connection) Flush(ctx context.Context) error {
	_, err := do[types.ResponseFlush](ctx, c, types.RequestFlush{})
	return err
}

func (c *Connection) Info(ctx context.Context, req types.RequestInfo) (types.ResponseInfo, error) {
	return do[types.ResponseInfo](ctx, c, req)
}

func (c *Connection) SetOption(ctx context.Context, req types.RequestSetOption) (types.ResponseSetOption, error) {
	return do[types.ResponseSetOption](ctx, c, req)
}

func (c *Connection) InitChain(ctx context.Context, req types.RequestInitChain) (types.ResponseInitChain, error) {
	return do[types.ResponseInitChain](ctx, c, req)
}

func (c *Connection) Query(ctx context.Context, req types.RequestQuery) (types.ResponseQuery, error) {
	return do[types.ResponseQuery](ctx, c, req)
}

func (c *Connection) BeginBlock(ctx context.Context, req types.RequestBeginBlock) (types.ResponseBeginBlock, error) {
	return do[types.ResponseBeginBlock](ctx, c, req)
}

func (c *Connection) CheckTx(ctx context.Context, req types.RequestCheckTx) (types.ResponseCheckTx, error) {
	return do[types.ResponseCheckTx](ctx, c, req)
}

func (c *Connection) DeliverTx(ctx context.Context, req types.RequestDeliverTx) (types.ResponseDeliverTx, error) {
	return do[types.ResponseDeliverTx](ctx, c, req)
}

func (c *Connection) EndBlock(ctx context.Context, req types.RequestEndBlock) (types.ResponseEndBlock, error) {
	return do[types.ResponseEndBlock](ctx, c, req)
}

func (c *Connection) Commit(ctx context.Context) (types.ResponseCommit, error) {
	return do[types.ResponseCommit](ctx, c, types.RequestCommit{})
}

// Close marks the connection closed. The application is not closed.
func (c *Connection) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}
