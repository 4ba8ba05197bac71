package main

import (
	"bytes"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/abci/example/counter"
	"github.com/blockberries/abci/server"
)

func TestParseBytes(t *testing.T) {
	b, err := parseBytes("0x0102")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, b)

	b, err = parseBytes(`"abc"`)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), b)

	_, err = parseBytes("0xZZ")
	assert.Error(t, err)
	_, err = parseBytes("abc")
	assert.Error(t, err)
}

func runCLI(t *testing.T, addr string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(append([]string{"--address", addr}, args...))
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestCLI_AgainstCounter(t *testing.T) {
	srv := server.New(counter.New(), server.DefaultConfig())
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() { _ = srv.Close() })
	addr := "tcp://" + lis.Addr().String()

	assert.Contains(t, runCLI(t, addr, "echo", "hello"), "-> data: hello")
	assert.Contains(t, runCLI(t, addr, "set-option", "serial", "on"), "-> log: key: serial value: on")

	out := runCLI(t, addr, "deliver-tx", "0x01")
	assert.Contains(t, out, "-> code: OK")

	out = runCLI(t, addr, "deliver-tx", "0x05")
	assert.Contains(t, out, "-> code: 3")
	assert.Contains(t, out, "-> log: bad count")

	assert.Contains(t, runCLI(t, addr, "commit"), "-> data.hex: 0x0000000000000001")

	out = runCLI(t, addr, "query", `"count"`)
	assert.Contains(t, out, "-> key: count")
	assert.Contains(t, out, "-> value.hex: 0000000000000001")

	assert.Contains(t, runCLI(t, addr, "info"), `{"hashes":0,"txs":1}`)
	assert.Contains(t, runCLI(t, addr, "check-tx", "0x02"), "-> log: All good")
}
