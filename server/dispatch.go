package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/blockberries/abci"
	"github.com/blockberries/abci/types"
)

// ErrUnknownRequest is returned for a Request the dispatcher has no
// route for.
var ErrUnknownRequest = errors.New("server: unknown request type")

// Dispatcher routes each Request variant to exactly one application
// callback and wraps the result in the matching Response variant. It
// holds no per-connection state and may be shared by every session.
type Dispatcher struct {
	app     abci.Application
	flusher abci.Flusher // nil if not supported
}

// NewDispatcher creates a Dispatcher for app.
func NewDispatcher(app abci.Application) *Dispatcher {
	d := &Dispatcher{app: app}
	d.flusher, _ = app.(abci.Flusher)
	return d
}

// Application returns the wrapped application.
func (d *Dispatcher) Application() abci.Application {
	return d.app
}

// Dispatch invokes the callback for req synchronously. An error
// returned by the callback, or a panic inside it, is reported as an
// *abci.FaultError; application-level failures travel in the response
// result code instead.
func (d *Dispatcher) Dispatch(ctx context.Context, req types.Request) (resp types.Response, err error) {
	if req == nil {
		return nil, ErrUnknownRequest
	}
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, &abci.FaultError{Method: req.Kind().String(), Panic: r}
		}
	}()

	switch r := req.(type) {
	case types.RequestEcho:
		return call(ctx, "Echo", d.app.Echo, r)
	case types.RequestFlush:
		if d.flusher != nil {
			if err := d.flusher.Flush(ctx); err != nil {
				return nil, abci.NewFault("Flush", err)
			}
		}
		return types.ResponseFlush{}, nil
	case types.RequestInfo:
		return call(ctx, "Info", d.app.Info, r)
	case types.RequestSetOption:
		return call(ctx, "SetOption", d.app.SetOption, r)
	case types.RequestInitChain:
		return call(ctx, "InitChain", d.app.InitChain, r)
	case types.RequestQuery:
		return call(ctx, "Query", d.app.Query, r)
	case types.RequestBeginBlock:
		return call(ctx, "BeginBlock", d.app.BeginBlock, r)
	case types.RequestCheckTx:
		return call(ctx, "CheckTx", d.app.CheckTx, r)
	case types.RequestDeliverTx:
		return call(ctx, "DeliverTx", d.app.DeliverTx, r)
	case types.RequestEndBlock:
		return call(ctx, "EndBlock", d.app.EndBlock, r)
	case types.RequestCommit:
		out, err := d.app.Commit(ctx)
		if err != nil {
			return nil, abci.NewFault("Commit", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownRequest, req)
	}
}

func call[Req any, Resp types.Response](
	ctx context.Context,
	method string,
	fn func(context.Context, Req) (Resp, error),
	req Req,
) (types.Response, error) {
	out, err := fn(ctx, req)
	if err != nil {
		return nil, abci.NewFault(method, err)
	}
	return out, nil
}
