package server

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/abci"
	"github.com/blockberries/abci/frame"
	"github.com/blockberries/abci/types"
	"github.com/blockberries/abci/wire"
)

// testApp is a minimal application with hooks, kept here to avoid an
// import cycle with abci/testing.
type testApp struct {
	abci.BaseApplication

	deliverTx func(types.RequestDeliverTx) (types.ResponseDeliverTx, error)
	commit    func() (types.ResponseCommit, error)
	flush     func() error

	delivered atomic.Int64
}

func (a *testApp) DeliverTx(_ context.Context, req types.RequestDeliverTx) (types.ResponseDeliverTx, error) {
	a.delivered.Add(1)
	if a.deliverTx != nil {
		return a.deliverTx(req)
	}
	return types.ResponseDeliverTx{}, nil
}

func (a *testApp) Commit(context.Context) (types.ResponseCommit, error) {
	if a.commit != nil {
		return a.commit()
	}
	return types.ResponseCommit{Data: []byte{0x01}}, nil
}

func (a *testApp) Flush(context.Context) error {
	if a.flush != nil {
		return a.flush()
	}
	return nil
}

func encodeFrames(t *testing.T, reqs ...types.Request) []byte {
	t.Helper()
	var out []byte
	for _, r := range reqs {
		b, err := wire.EncodeRequest(r)
		require.NoError(t, err)
		out = frame.Append(out, b)
	}
	return out
}

func readResponse(t *testing.T, r *frame.Reader) types.Response {
	t.Helper()
	body, err := r.ReadFrame()
	require.NoError(t, err)
	resp, err := wire.DecodeResponse(body)
	require.NoError(t, err)
	return resp
}

// pipeSession runs a session over one end of a net.Pipe and returns
// the other end plus the channel receiving Run's result.
func pipeSession(t *testing.T, app abci.Application, cfg Config, opts ...Option) (net.Conn, <-chan error) {
	t.Helper()
	client, srv := net.Pipe()
	sess := NewSession(srv, NewDispatcher(app), cfg, opts...)
	errc := make(chan error, 1)
	go func() { errc <- sess.Run(context.Background()) }()
	t.Cleanup(func() { _ = client.Close() })
	return client, errc
}

func write(t *testing.T, conn net.Conn, b []byte) {
	t.Helper()
	go func() { _, _ = conn.Write(b) }()
}

func waitErr(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end")
		return nil
	}
}

func TestDispatcher_EveryKind(t *testing.T) {
	d := NewDispatcher(&testApp{})
	reqs := []types.Request{
		types.RequestEcho{Message: "m"}, types.RequestFlush{}, types.RequestInfo{},
		types.RequestSetOption{Key: "k"}, types.RequestInitChain{}, types.RequestQuery{},
		types.RequestBeginBlock{}, types.RequestCheckTx{}, types.RequestDeliverTx{},
		types.RequestEndBlock{}, types.RequestCommit{},
	}
	for _, req := range reqs {
		resp, err := d.Dispatch(context.Background(), req)
		require.NoError(t, err, req.Kind().String())
		assert.Equal(t, req.Kind(), resp.Kind())
	}

	resp, err := d.Dispatch(context.Background(), types.RequestEcho{Message: "m"})
	require.NoError(t, err)
	assert.Equal(t, types.ResponseEcho{Message: "m"}, resp)
}

func TestDispatcher_Faults(t *testing.T) {
	cause := errors.New("disk gone")
	app := &testApp{
		deliverTx: func(types.RequestDeliverTx) (types.ResponseDeliverTx, error) {
			return types.ResponseDeliverTx{}, cause
		},
		commit: func() (types.ResponseCommit, error) { panic("boom") },
		flush:  func() error { return cause },
	}
	d := NewDispatcher(app)

	_, err := d.Dispatch(context.Background(), types.RequestDeliverTx{})
	f, ok := abci.IsFault(err)
	require.True(t, ok)
	assert.Equal(t, "DeliverTx", f.Method)
	assert.ErrorIs(t, err, cause)

	_, err = d.Dispatch(context.Background(), types.RequestCommit{})
	f, ok = abci.IsFault(err)
	require.True(t, ok)
	assert.Equal(t, "Commit", f.Method)
	assert.Equal(t, "boom", f.Panic)

	_, err = d.Dispatch(context.Background(), types.RequestFlush{})
	f, ok = abci.IsFault(err)
	require.True(t, ok)
	assert.Equal(t, "Flush", f.Method)
}

func TestDispatcher_ApplicationErrorIsAResponse(t *testing.T) {
	d := NewDispatcher(&testApp{
		deliverTx: func(types.RequestDeliverTx) (types.ResponseDeliverTx, error) {
			return types.ResponseDeliverTx{Code: 3, Log: "bad count"}, nil
		},
	})
	resp, err := d.Dispatch(context.Background(), types.RequestDeliverTx{})
	require.NoError(t, err)
	assert.Equal(t, uint32(3), resp.ResultCode())
}

func TestDispatcher_UnknownRequest(t *testing.T) {
	d := NewDispatcher(&testApp{})
	_, err := d.Dispatch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUnknownRequest)
	_, err = d.Dispatch(context.Background(), &types.RequestEcho{})
	assert.ErrorIs(t, err, ErrUnknownRequest)
}

func TestSession_OrderingOneChunk(t *testing.T) {
	const n = 200
	conn, errc := pipeSession(t, &testApp{}, DefaultConfig())

	reqs := make([]types.Request, n)
	for i := range reqs {
		reqs[i] = types.RequestEcho{Message: string(rune('a' + i%26))}
	}
	write(t, conn, encodeFrames(t, reqs...))

	r := frame.NewReader(conn, 0)
	for i := range n {
		resp := readResponse(t, r)
		require.Equal(t, types.ResponseEcho{Message: reqs[i].(types.RequestEcho).Message}, resp, "response %d", i)
	}
	require.NoError(t, conn.Close())
	<-errc
}

func TestSession_OrderingByteAtATime(t *testing.T) {
	app := &testApp{}
	conn, errc := pipeSession(t, app, DefaultConfig())

	reqs := []types.Request{
		types.RequestEcho{Message: "a"},
		types.RequestInfo{},
		types.RequestBeginBlock{Header: types.Header{Height: 1}},
		types.RequestDeliverTx{Tx: []byte{0x01}},
		types.RequestFlush{},
		types.RequestDeliverTx{Tx: []byte{0x02}},
		types.RequestEndBlock{Height: 1},
		types.RequestCommit{},
		types.RequestQuery{Path: "/x"},
		types.RequestFlush{},
		types.RequestEcho{Message: "z"},
	}
	stream := encodeFrames(t, reqs...)
	go func() {
		for i := range stream {
			if _, err := conn.Write(stream[i : i+1]); err != nil {
				return
			}
		}
	}()

	r := frame.NewReader(conn, 0)
	for i, req := range reqs {
		resp := readResponse(t, r)
		require.Equal(t, req.Kind(), resp.Kind(), "response %d", i)
	}
	assert.Equal(t, int64(2), app.delivered.Load())

	require.NoError(t, conn.Close())
	<-errc
}

func TestSession_FlushDeliversEarlierResponsesFirst(t *testing.T) {
	gotEcho := make(chan struct{})
	var hookErr atomic.Value
	app := &testApp{flush: func() error {
		select {
		case <-gotEcho:
		case <-time.After(2 * time.Second):
			hookErr.Store("echo response not flushed before Flush callback")
		}
		return nil
	}}
	conn, errc := pipeSession(t, app, DefaultConfig())

	write(t, conn, encodeFrames(t, types.RequestEcho{Message: "first"}, types.RequestFlush{}))
	r := frame.NewReader(conn, 0)
	assert.Equal(t, types.ResponseEcho{Message: "first"}, readResponse(t, r))
	close(gotEcho)
	assert.Equal(t, types.ResponseFlush{}, readResponse(t, r))
	assert.Nil(t, hookErr.Load())

	require.NoError(t, conn.Close())
	<-errc
}

func TestSession_CleanEOF(t *testing.T) {
	client, srv := net.Pipe()
	sess := NewSession(srv, NewDispatcher(&testApp{}), DefaultConfig())
	errc := make(chan error, 1)
	go func() { errc <- sess.Run(context.Background()) }()

	go func() {
		_, _ = client.Write(encodeFrames(t, types.RequestEcho{Message: "x"}))
	}()
	r := frame.NewReader(client, 0)
	readResponse(t, r)
	require.NoError(t, client.Close())
	assert.NoError(t, waitErr(t, errc))
}

func TestSession_EOFInsideFrame(t *testing.T) {
	conn, errc := pipeSession(t, &testApp{}, DefaultConfig())
	partial := encodeFrames(t, types.RequestEcho{Message: "truncated"})
	_, err := conn.Write(partial[:4])
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	err = waitErr(t, errc)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestSession_OversizeFrameTerminates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxFrameSize = 16
	conn, errc := pipeSession(t, &testApp{}, cfg)

	stream := encodeFrames(t, types.RequestEcho{Message: "ok"})
	stream = frame.Append(stream, make([]byte, 17))
	stream = append(stream, encodeFrames(t, types.RequestEcho{Message: "never"})...)
	write(t, conn, stream)

	r := frame.NewReader(conn, 0)
	assert.Equal(t, types.ResponseEcho{Message: "ok"}, readResponse(t, r))
	_, err := r.ReadFrame()
	assert.Error(t, err, "no response after the oversized frame")

	err = waitErr(t, errc)
	assert.ErrorIs(t, err, frame.ErrFrameTooLarge)
}

func TestSession_MalformedRequestTerminates(t *testing.T) {
	app := &testApp{}
	conn, errc := pipeSession(t, app, DefaultConfig())

	stream := frame.Append(nil, []byte{0xFF, 0xFF})
	stream = append(stream, encodeFrames(t, types.RequestDeliverTx{Tx: []byte{1}})...)
	write(t, conn, stream)

	err := waitErr(t, errc)
	assert.ErrorIs(t, err, wire.ErrMalformed)
	assert.Zero(t, app.delivered.Load(), "frames after the bad one are not dispatched")
}

func TestSession_FaultTerminatesAfterEarlierResponses(t *testing.T) {
	app := &testApp{deliverTx: func(req types.RequestDeliverTx) (types.ResponseDeliverTx, error) {
		if len(req.Tx) == 0 {
			return types.ResponseDeliverTx{}, errors.New("empty tx")
		}
		return types.ResponseDeliverTx{}, nil
	}}
	conn, errc := pipeSession(t, app, DefaultConfig())

	write(t, conn, encodeFrames(t,
		types.RequestDeliverTx{Tx: []byte{1}},
		types.RequestDeliverTx{},
		types.RequestDeliverTx{Tx: []byte{2}},
	))
	r := frame.NewReader(conn, 0)
	assert.Equal(t, types.ResponseDeliverTx{}, readResponse(t, r))

	err := waitErr(t, errc)
	_, ok := abci.IsFault(err)
	assert.True(t, ok, "got %v", err)
	assert.Equal(t, int64(2), app.delivered.Load())
}

func TestSession_ContextCancel(t *testing.T) {
	client, srv := net.Pipe()
	defer client.Close()
	sess := NewSession(srv, NewDispatcher(&testApp{}), DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- sess.Run(ctx) }()
	cancel()
	assert.ErrorIs(t, waitErr(t, errc), context.Canceled)
}

func TestSession_CycleViolationsCounted(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())
	conn, errc := pipeSession(t, &testApp{}, DefaultConfig(), WithMetrics(m))

	write(t, conn, encodeFrames(t,
		types.RequestDeliverTx{Tx: []byte{1}},
		types.RequestBeginBlock{},
		types.RequestDeliverTx{Tx: []byte{1}},
		types.RequestEndBlock{Height: 1},
		types.RequestCommit{},
	))
	r := frame.NewReader(conn, 0)
	for range 5 {
		readResponse(t, r)
	}
	require.NoError(t, conn.Close())
	<-errc

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycleViolations.WithLabelValues("DeliverTx")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("DeliverTx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsClosed.WithLabelValues(reasonEOF)))
}

func startServer(t *testing.T, app abci.Application, cfg Config) *Server {
	t.Helper()
	srv := New(app, cfg)
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(lis) }()
	require.Eventually(t, func() bool { return srv.Addr() != nil }, time.Second, time.Millisecond)
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func TestServer_ConcurrentConnections(t *testing.T) {
	app := &testApp{}
	srv := startServer(t, app, DefaultConfig())

	const conns, perConn = 4, 50
	var wg sync.WaitGroup
	for range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := net.Dial("tcp", srv.Addr().String())
			if !assert.NoError(t, err) {
				return
			}
			defer c.Close()

			reqs := make([]types.Request, perConn)
			for i := range reqs {
				reqs[i] = types.RequestDeliverTx{Tx: []byte{byte(i)}}
			}
			_, err = c.Write(encodeFrames(t, reqs...))
			if !assert.NoError(t, err) {
				return
			}
			r := frame.NewReader(c, 0)
			for range perConn {
				body, err := r.ReadFrame()
				if !assert.NoError(t, err) {
					return
				}
				resp, err := wire.DecodeResponse(body)
				assert.NoError(t, err)
				assert.Equal(t, types.KindDeliverTx, resp.Kind())
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(conns*perConn), app.delivered.Load())
}

func TestServer_FatalSessionDoesNotAffectOthers(t *testing.T) {
	srv := startServer(t, &testApp{}, DefaultConfig())

	bad, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer bad.Close()
	good, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer good.Close()

	_, err = bad.Write(frame.Append(nil, []byte{0xFF}))
	require.NoError(t, err)
	_, err = frame.NewReader(bad, 0).ReadFrame()
	require.Error(t, err, "bad session is closed")

	_, err = good.Write(encodeFrames(t, types.RequestEcho{Message: "still here"}))
	require.NoError(t, err)
	assert.Equal(t, types.ResponseEcho{Message: "still here"}, readResponse(t, frame.NewReader(good, 0)))
}

func TestServer_CloseWaitsForInFlightCallback(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	app := &testApp{commit: func() (types.ResponseCommit, error) {
		close(entered)
		<-release
		return types.ResponseCommit{}, nil
	}}
	srv := startServer(t, app, DefaultConfig())

	c, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer c.Close()
	_, err = c.Write(encodeFrames(t, types.RequestCommit{}))
	require.NoError(t, err)
	<-entered

	closed := make(chan error, 1)
	go func() { closed <- srv.Close() }()
	select {
	case <-closed:
		t.Fatal("Close returned while a callback was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
}

func TestServer_ServeAfterClose(t *testing.T) {
	srv := New(&testApp{}, DefaultConfig())
	require.NoError(t, srv.Close())

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	assert.ErrorIs(t, srv.Serve(lis), ErrServerClosed)
}

func TestServer_ListenAndServeStopsOnCancel(t *testing.T) {
	srv := New(&testApp{}, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe(ctx, "tcp://127.0.0.1:0") }()
	require.Eventually(t, func() bool { return srv.Addr() != nil }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ListenAndServe did not return")
	}
}

func TestParseAddress(t *testing.T) {
	for addr, want := range map[string][2]string{
		"tcp://127.0.0.1:26658": {"tcp", "127.0.0.1:26658"},
		"unix:///tmp/app.sock":  {"unix", "/tmp/app.sock"},
		"localhost:1":           {"tcp", "localhost:1"},
	} {
		network, address := ParseAddress(addr)
		assert.Equal(t, want, [2]string{network, address}, addr)
	}
}
