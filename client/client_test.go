package client

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/abci"
	"github.com/blockberries/abci/server"
	"github.com/blockberries/abci/types"
)

// seqApp reports the order in which DeliverTx calls arrive.
type seqApp struct {
	abci.BaseApplication
	n     atomic.Uint64
	block chan struct{}
}

func (a *seqApp) DeliverTx(_ context.Context, req types.RequestDeliverTx) (types.ResponseDeliverTx, error) {
	seq := a.n.Add(1)
	return types.ResponseDeliverTx{Data: append(binary.BigEndian.AppendUint64(nil, seq), req.Tx...)}, nil
}

func (a *seqApp) Query(context.Context, types.RequestQuery) (types.ResponseQuery, error) {
	if a.block != nil {
		<-a.block
	}
	return types.ResponseQuery{}, nil
}

func dialTestServer(t *testing.T, app abci.Application) *Client {
	t.Helper()
	srv := server.New(app, server.DefaultConfig())
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() { _ = srv.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, "tcp://"+lis.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_Echo(t *testing.T) {
	c := dialTestServer(t, &seqApp{})
	resp, err := c.Echo(context.Background(), types.RequestEcho{Message: "ping"})
	require.NoError(t, err)
	assert.Equal(t, "ping", resp.Message)
	require.NoError(t, c.Flush(context.Background()))
}

func TestClient_PipelinedBatchKeepsOrder(t *testing.T) {
	c := dialTestServer(t, &seqApp{})

	const n = 500
	reqs := make([]types.Request, n)
	for i := range reqs {
		reqs[i] = types.RequestDeliverTx{Tx: []byte{byte(i), byte(i >> 8)}}
	}
	reqs = append(reqs, types.RequestFlush{})

	resps, err := c.Do(context.Background(), reqs...)
	require.NoError(t, err)
	require.Len(t, resps, n+1)
	for i := range n {
		r, ok := resps[i].(types.ResponseDeliverTx)
		require.True(t, ok)
		assert.Equal(t, uint64(i+1), binary.BigEndian.Uint64(r.Data[:8]))
		assert.Equal(t, reqs[i].(types.RequestDeliverTx).Tx, r.Data[8:])
	}
	assert.Equal(t, types.ResponseFlush{}, resps[n])
}

func TestClient_ContextCancelBreaksConnection(t *testing.T) {
	app := &seqApp{block: make(chan struct{})}
	defer close(app.block)
	c := dialTestServer(t, app)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Query(ctx, types.RequestQuery{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = c.Echo(context.Background(), types.RequestEcho{})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClient_Close(t *testing.T) {
	c := dialTestServer(t, &seqApp{})
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	_, err := c.Commit(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

// writeFailConn rejects every write while reads block on the pipe.
type writeFailConn struct {
	net.Conn
}

func (writeFailConn) Write([]byte) (int, error) { return 0, errors.New("link down") }

func TestClient_WriteFailureUnblocksRead(t *testing.T) {
	local, peer := net.Pipe()
	t.Cleanup(func() { _ = peer.Close() })
	c := New(writeFailConn{Conn: local})

	done := make(chan error, 1)
	go func() {
		_, err := c.Do(context.Background(), types.RequestEcho{Message: "x"})
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Do blocked after write failure")
	}

	_, err := c.Echo(context.Background(), types.RequestEcho{})
	assert.ErrorIs(t, err, ErrClosed)
}
