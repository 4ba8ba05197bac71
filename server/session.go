package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/blockberries/abci"
	"github.com/blockberries/abci/frame"
	"github.com/blockberries/abci/types"
	"github.com/blockberries/abci/wire"
)

// TransportError reports a failed read or write on the connection, or a
// stream that ended inside a frame.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

var nextSessionID atomic.Uint64

// Session serves one connection. Requests are decoded, dispatched and
// answered strictly in arrival order; one frame in always produces
// one frame out until the session ends.
type Session struct {
	id      uint64
	conn    io.ReadWriteCloser
	disp    *Dispatcher
	cfg     Config
	log     zerolog.Logger
	metrics *Metrics
	cycle   *CycleTracker // nil when disabled

	dec     *frame.Decoder
	w       *bufio.Writer
	scratch []byte

	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool
}

// NewSession prepares a session over conn. The session owns conn and
// closes it when Run returns.
func NewSession(conn io.ReadWriteCloser, d *Dispatcher, cfg Config, opts ...Option) *Session {
	o := newOptions(opts)
	cfg = cfg.withDefaults()

	s := &Session{
		id:      nextSessionID.Add(1),
		conn:    conn,
		disp:    d,
		cfg:     cfg,
		metrics: o.metrics,
		dec:     frame.NewDecoder(cfg.MaxFrameSize),
		w:       bufio.NewWriterSize(conn, cfg.WriteBufferSize),
	}
	logCtx := o.logger.With().Uint64("session", s.id)
	if nc, ok := conn.(net.Conn); ok && nc.RemoteAddr() != nil {
		logCtx = logCtx.Str("remote", nc.RemoteAddr().String())
	}
	s.log = logCtx.Logger()
	if cfg.CheckBlockCycle {
		s.cycle = NewCycleTracker()
	}
	return s
}

// ID returns the process-unique session id.
func (s *Session) ID() uint64 { return s.id }

// Cycle returns the session's block-cycle tracker, or nil when
// tracking is disabled.
func (s *Session) Cycle() *CycleTracker { return s.cycle }

// Run serves the connection until the peer disconnects, a fatal error
// occurs, Close is called or ctx is done. A clean end of stream on a
// frame boundary returns nil; so does Close. Cancelling ctx returns
// ctx.Err().
//
// Callbacks run with a context detached from ctx cancellation: a
// callback in flight when the session stops is allowed to finish.
func (s *Session) Run(ctx context.Context) (err error) {
	s.metrics.sessionOpened()
	s.log.Debug().Msg("session opened")

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer func() {
		stop()
		closed := s.closed.Load()
		if closed {
			err = ctx.Err()
		}
		reason := terminationReason(err, closed)
		s.metrics.sessionClosed(reason)
		_ = s.Close()

		if err != nil && reason != reasonClosed {
			s.log.Warn().Err(err).Str("reason", reason).Msg("session terminated")
		} else {
			s.log.Debug().Str("reason", reason).Msg("session closed")
		}
	}()

	cbCtx := context.WithoutCancel(ctx)
	buf := make([]byte, s.cfg.ReadBufferSize)
	for {
		n, rerr := s.conn.Read(buf)
		if n > 0 {
			s.dec.Feed(buf[:n])
			if err := s.drain(cbCtx); err != nil {
				// Responses to the frames before the failing one still go out.
				_ = s.w.Flush()
				return err
			}
			if err := s.flush(); err != nil {
				return err
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				if s.dec.Buffered() > 0 {
					return &TransportError{Op: "read", Err: io.ErrUnexpectedEOF}
				}
				return nil
			}
			return &TransportError{Op: "read", Err: rerr}
		}
	}
}

// Close closes the transport, unblocking a pending read. It does not
// interrupt a callback in flight.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// drain handles every complete frame currently buffered.
func (s *Session) drain(ctx context.Context) error {
	for {
		body, ok, err := s.dec.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := s.handle(ctx, body); err != nil {
			return err
		}
	}
}

func (s *Session) handle(ctx context.Context, body []byte) error {
	req, err := wire.DecodeRequest(body)
	if err != nil {
		return err
	}
	kind := req.Kind()

	if s.cycle != nil {
		if verr := s.cycle.Observe(kind); verr != nil {
			s.metrics.cycleViolation(kind)
			s.log.Warn().Err(verr).Msg("block cycle violation")
		}
	}

	// Everything queued before a Flush reaches the transport first.
	_, isFlush := req.(types.RequestFlush)
	if isFlush {
		if err := s.flush(); err != nil {
			return err
		}
	}

	start := time.Now()
	resp, err := s.disp.Dispatch(ctx, req)
	s.metrics.observeRequest(resp, kind, time.Since(start))
	if err != nil {
		return err
	}
	if code := resp.ResultCode(); code != types.CodeTypeOK {
		s.log.Debug().Stringer("kind", kind).Uint32("code", code).Msg("application error")
	}

	out, err := wire.EncodeResponse(resp)
	if err != nil {
		return err
	}
	s.scratch = frame.Append(s.scratch[:0], out)
	if _, err := s.w.Write(s.scratch); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	if isFlush {
		return s.flush()
	}
	return nil
}

func (s *Session) flush() error {
	if err := s.w.Flush(); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

func terminationReason(err error, closed bool) string {
	var (
		fe *frame.FramingError
		me *wire.MalformedError
	)
	switch {
	case closed:
		return reasonClosed
	case err == nil:
		return reasonEOF
	case errors.As(err, &fe):
		return reasonFraming
	case errors.As(err, &me):
		return reasonDecode
	default:
		if _, ok := abci.IsFault(err); ok {
			return reasonFault
		}
		return reasonTransport
	}
}
