// Package client is the consensus-engine side of the socket protocol.
//
// A Client owns one connection and pipelines requests over it: a batch
// is written in full while responses are read back in order.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/blockberries/abci"
	"github.com/blockberries/abci/frame"
	"github.com/blockberries/abci/server"
	"github.com/blockberries/abci/types"
	"github.com/blockberries/abci/wire"
)

var (
	// ErrClosed is returned after Close or once the connection broke.
	ErrClosed = errors.New("client: connection closed")
	// ErrUnexpectedResponse is returned when a response variant does
	// not match its request.
	ErrUnexpectedResponse = errors.New("client: response does not match request")
)

// Compile-time interface check.
var _ abci.Connection = (*Client)(nil)

type options struct {
	logger       zerolog.Logger
	maxFrameSize uint64
}

// Option configures a Client.
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMaxFrameSize bounds the size of one response frame.
func WithMaxFrameSize(n uint64) Option {
	return func(o *options) { o.maxFrameSize = n }
}

// Client is a pipelining socket client. It is safe for concurrent use;
// batches from different goroutines are serialized.
type Client struct {
	conn net.Conn
	r    *frame.Reader
	log  zerolog.Logger

	mu     sync.Mutex
	broken error
}

// Dial connects to addr ("tcp://host:port", "unix:///path" or a bare
// "host:port").
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	network, address := server.ParseAddress(addr)
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	return New(conn, opts...), nil
}

// New wraps an established connection.
func New(conn net.Conn, opts ...Option) *Client {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{
		conn: conn,
		r:    frame.NewReader(conn, o.maxFrameSize),
		log:  o.logger.With().Str("component", "abci-client").Str("remote", conn.RemoteAddr().String()).Logger(),
	}
}

// Do sends reqs as one pipelined batch and returns their responses in
// order. Any failure, including ctx ending mid-batch, breaks the
// connection: its framing position is no longer known.
func (c *Client) Do(ctx context.Context, reqs ...types.Request) ([]types.Response, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	var out []byte
	for _, req := range reqs {
		b, err := wire.EncodeRequest(req)
		if err != nil {
			return nil, err
		}
		out = frame.Append(out, b)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken != nil {
		return nil, c.broken
	}

	if dl, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(dl)
		defer func() { _ = c.conn.SetDeadline(time.Time{}) }()
	}
	stop := context.AfterFunc(ctx, func() { _ = c.conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()

	// Either side failing closes the conn so the other cannot block.
	fail := func(err error) error {
		_ = c.conn.Close()
		return err
	}
	resps := make([]types.Response, 0, len(reqs))
	var g errgroup.Group
	g.Go(func() error {
		if _, err := c.conn.Write(out); err != nil {
			return fail(fmt.Errorf("client: write: %w", err))
		}
		return nil
	})
	g.Go(func() error {
		for _, req := range reqs {
			body, err := c.r.ReadFrame()
			if err != nil {
				return fail(fmt.Errorf("client: read %s response: %w", req.Kind(), err))
			}
			resp, err := wire.DecodeResponse(body)
			if err != nil {
				return fail(err)
			}
			if resp.Kind() != req.Kind() {
				return fail(fmt.Errorf("%w: sent %s, got %s", ErrUnexpectedResponse, req.Kind(), resp.Kind()))
			}
			resps = append(resps, resp)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		if cerr := ctx.Err(); cerr != nil {
			err = fmt.Errorf("%w: %w", cerr, err)
		} else if _, ok := ctx.Deadline(); ok && errors.Is(err, os.ErrDeadlineExceeded) {
			err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
		c.broken = fmt.Errorf("%w: %w", ErrClosed, err)
		_ = c.conn.Close()
		c.log.Debug().Err(err).Msg("connection broken")
		return nil, err
	}
	return resps, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken != nil {
		return nil
	}
	c.broken = ErrClosed
	return c.conn.Close()
}

func do[T types.Response](ctx context.Context, c *Client, req types.Request) (T, error) {
	var zero T
	resps, err := c.Do(ctx, req)
	if err != nil {
		return zero, err
	}
	resp, ok := resps[0].(T)
	if !ok {
		return zero, fmt.Errorf("%w: got %T", ErrUnexpectedResponse, resps[0])
	}
	return resp, nil
}

func (c *Client) Echo(ctx context.Context, req types.RequestEcho) (types.ResponseEcho, error) {
	return do[types.ResponseEcho](ctx, c, req)
}

// Flush sends a Flush request and waits for its response, which the
// server writes only after every earlier response.
func (c *Client) Flush(ctx context.Context) error {
	_, err := do[types.ResponseFlush](ctx, c, types.RequestFlush{})
	return err
}

func (c *Client) Info(ctx context.Context, req types.RequestInfo) (types.ResponseInfo, error) {
	return do[types.ResponseInfo](ctx, c, req)
}

func (c *Client) SetOption(ctx context.Context, req types.RequestSetOption) (types.ResponseSetOption, error) {
	return do[types.ResponseSetOption](ctx, c, req)
}

func (c *Client) InitChain(ctx context.Context, req types.RequestInitChain) (types.ResponseInitChain, error) {
	return do[types.ResponseInitChain](ctx, c, req)
}

func (c *Client) Query(ctx context.Context, req types.RequestQuery) (types.ResponseQuery, error) {
	return do[types.ResponseQuery](ctx, c, req)
}

func (c *Client) BeginBlock(ctx context.Context, req types.RequestBeginBlock) (types.ResponseBeginBlock, error) {
	return do[types.ResponseBeginBlock](ctx, c, req)
}

func (c *Client) CheckTx(ctx context.Context, req types.RequestCheckTx) (types.ResponseCheckTx, error) {
	return do[types.ResponseCheckTx](ctx, c, req)
}

func (c *Client) DeliverTx(ctx context.Context, req types.RequestDeliverTx) (types.ResponseDeliverTx, error) {
	return do[types.ResponseDeliverTx](ctx, c, req)
}

func (c *Client) EndBlock(ctx context.Context, req types.RequestEndBlock) (types.ResponseEndBlock, error) {
	return do[types.ResponseEndBlock](ctx, c, req)
}

func (c *Client) Commit(ctx context.Context) (types.ResponseCommit, error) {
	return do[types.ResponseCommit](ctx, c, types.RequestCommit{})
}
