package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_GRPCListenFailureStopsServers(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = busy.Close() })

	cfg := DefaultConfig()
	cfg.Addr = "tcp://127.0.0.1:0"
	cfg.GRPCAddr = "tcp://" + busy.Addr().String()

	done := make(chan error, 1)
	go func() { done <- run(context.Background(), cfg, zerolog.Nop()) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "grpc listen")
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after grpc listen failure")
	}
}
