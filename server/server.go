package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/blockberries/abci"
)

// ErrServerClosed is returned by Serve after Close.
var ErrServerClosed = errors.New("server: closed")

type options struct {
	logger  zerolog.Logger
	metrics *Metrics
}

// Option configures a Server or Session.
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics sink. The default records nothing.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func newOptions(opts []Option) options {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Server accepts connections and runs one Session per connection.
// All sessions share one Dispatcher, and thus one Application; the
// server never serializes callbacks across connections.
type Server struct {
	disp    *Dispatcher
	cfg     Config
	opts    []Option
	log     zerolog.Logger
	sem     *semaphore.Weighted // nil when unbounded
	limiter *rate.Limiter       // nil when unlimited

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	listeners map[net.Listener]struct{}
	sessions  map[*Session]struct{}
	addr      net.Addr

	wg       sync.WaitGroup
	shutdown atomic.Bool
}

// New creates a Server for app.
func New(app abci.Application, cfg Config, opts ...Option) *Server {
	cfg = cfg.withDefaults()
	o := newOptions(opts)
	s := &Server{
		disp:      NewDispatcher(app),
		cfg:       cfg,
		opts:      opts,
		log:       o.logger.With().Str("component", "abci-server").Logger(),
		limiter:   cfg.acceptLimiter(),
		listeners: make(map[net.Listener]struct{}),
		sessions:  make(map[*Session]struct{}),
	}
	if cfg.MaxConnections > 0 {
		s.sem = semaphore.NewWeighted(cfg.MaxConnections)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Dispatcher returns the dispatcher shared by the server's sessions.
func (s *Server) Dispatcher() *Dispatcher { return s.disp }

// Addr returns the address of the most recently started listener, or
// nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// ListenAndServe listens on addr ("tcp://host:port", "unix:///path",
// or a bare "host:port") and serves until ctx is done or Close is
// called.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	network, address := ParseAddress(addr)
	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, network, address)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	err = s.Serve(lis)
	if errors.Is(err, ErrServerClosed) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Serve accepts connections on lis until Close. It always returns a
// non-nil error; after Close the error is ErrServerClosed.
func (s *Server) Serve(lis net.Listener) error {
	if !s.trackListener(lis) {
		_ = lis.Close()
		return ErrServerClosed
	}
	defer s.untrackListener(lis)
	s.log.Info().Str("addr", lis.Addr().String()).Msg("listening")

	for {
		if s.limiter != nil {
			if err := s.limiter.Wait(s.ctx); err != nil {
				return ErrServerClosed
			}
		}
		if s.sem != nil {
			if err := s.sem.Acquire(s.ctx, 1); err != nil {
				return ErrServerClosed
			}
		}

		conn, err := lis.Accept()
		if err != nil {
			s.release()
			// Closing the listener during shutdown makes Accept fail.
			if s.shutdown.Load() {
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.log.Warn().Err(err).Msg("accept")
				time.Sleep(5 * time.Millisecond)
				continue
			}
			return err
		}

		sess := NewSession(conn, s.disp, s.cfg, s.opts...)
		if !s.trackSession(sess) {
			s.release()
			_ = conn.Close()
			return ErrServerClosed
		}
		go func() {
			defer s.release()
			s.run(s.ctx, sess)
		}()
	}
}

// ServeConn runs a session over conn on the calling goroutine until it
// ends. It is the entry point for transports that do not come from a
// net.Listener.
func (s *Server) ServeConn(ctx context.Context, conn net.Conn) error {
	sess := NewSession(conn, s.disp, s.cfg, s.opts...)
	if !s.trackSession(sess) {
		_ = conn.Close()
		return ErrServerClosed
	}
	merged, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()
	return s.run(merged, sess)
}

func (s *Server) run(ctx context.Context, sess *Session) error {
	defer s.wg.Done()
	defer s.untrackSession(sess)
	return sess.Run(ctx)
}

// Close stops accepting, closes every session and waits for their
// in-flight callbacks to return.
func (s *Server) Close() error {
	if !s.shutdown.CompareAndSwap(false, true) {
		return nil
	}
	s.cancel()

	var result *multierror.Error
	s.mu.Lock()
	for lis := range s.listeners {
		if err := lis.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			result = multierror.Append(result, err)
		}
	}
	for sess := range s.sessions {
		if err := sess.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			result = multierror.Append(result, err)
		}
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	if s.cfg.ShutdownTimeout > 0 {
		select {
		case <-done:
		case <-time.After(s.cfg.ShutdownTimeout):
			result = multierror.Append(result, errors.New("server: timed out waiting for sessions"))
		}
	} else {
		<-done
	}
	s.log.Info().Msg("closed")
	return result.ErrorOrNil()
}

func (s *Server) release() {
	if s.sem != nil {
		s.sem.Release(1)
	}
}

func (s *Server) trackListener(lis net.Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown.Load() {
		return false
	}
	s.listeners[lis] = struct{}{}
	s.addr = lis.Addr()
	return true
}

func (s *Server) untrackListener(lis net.Listener) {
	s.mu.Lock()
	delete(s.listeners, lis)
	s.mu.Unlock()
}

// trackSession registers sess and adds it to the wait group. It fails
// once Close has started.
func (s *Server) trackSession(sess *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown.Load() {
		return false
	}
	s.sessions[sess] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrackSession(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
}
