package abcitest

import (
	"context"
	"testing"
	"time"

	"github.com/blockberries/abci"
	"github.com/blockberries/abci/local"
	"github.com/blockberries/abci/server"
	"github.com/blockberries/abci/types"
)

// Harness drives an application through the block cycle the way a
// consensus engine would, failing the test on any callback error or
// out-of-order call.
type Harness struct {
	t     *testing.T
	conn  abci.Connection
	cycle *server.CycleTracker
}

// NewHarness creates a harness over an in-process connection to app.
func NewHarness(t *testing.T, app abci.Application) *Harness {
	t.Helper()
	return NewHarnessConn(t, local.NewConnection(app))
}

// NewHarnessConn creates a harness over any connection, such as a
// socket or gRPC client. The harness closes conn at test cleanup.
func NewHarnessConn(t *testing.T, conn abci.Connection) *Harness {
	t.Helper()
	t.Cleanup(func() { _ = conn.Close() })
	return &Harness{t: t, conn: conn, cycle: server.NewCycleTracker()}
}

// Conn returns the underlying connection for direct access.
func (h *Harness) Conn() abci.Connection {
	return h.conn
}

func (h *Harness) observe(k types.Kind) {
	h.t.Helper()
	if err := h.cycle.Observe(k); err != nil {
		h.t.Fatalf("block cycle: %v", err)
	}
}

// Info performs the Info handshake.
func (h *Harness) Info() types.ResponseInfo {
	h.t.Helper()
	resp, err := h.conn.Info(context.Background(), DefaultInfo())
	if err != nil {
		h.t.Fatalf("Info failed: %v", err)
	}
	return resp
}

// SetOption sets an application option.
func (h *Harness) SetOption(key, value string) types.ResponseSetOption {
	h.t.Helper()
	resp, err := h.conn.SetOption(context.Background(), types.RequestSetOption{Key: key, Value: value})
	if err != nil {
		h.t.Fatalf("SetOption(%s) failed: %v", key, err)
	}
	return resp
}

// InitChain sends the genesis call.
func (h *Harness) InitChain(req types.RequestInitChain) types.ResponseInitChain {
	h.t.Helper()
	h.observe(types.KindInitChain)
	resp, err := h.conn.InitChain(context.Background(), req)
	if err != nil {
		h.t.Fatalf("InitChain failed: %v", err)
	}
	return resp
}

// InitChainDefault sends a genesis call with DefaultInitChain.
func (h *Harness) InitChainDefault() types.ResponseInitChain {
	h.t.Helper()
	return h.InitChain(DefaultInitChain())
}

// BeginBlock opens a block at height.
func (h *Harness) BeginBlock(height int64) types.ResponseBeginBlock {
	h.t.Helper()
	h.observe(types.KindBeginBlock)
	resp, err := h.conn.BeginBlock(context.Background(), MakeBeginBlock(height))
	if err != nil {
		h.t.Fatalf("BeginBlock (height=%d) failed: %v", height, err)
	}
	return resp
}

// DeliverTx executes one transaction in the open block.
func (h *Harness) DeliverTx(tx []byte) types.ResponseDeliverTx {
	h.t.Helper()
	h.observe(types.KindDeliverTx)
	resp, err := h.conn.DeliverTx(context.Background(), types.RequestDeliverTx{Tx: tx})
	if err != nil {
		h.t.Fatalf("DeliverTx failed: %v", err)
	}
	return resp
}

// EndBlock closes the block at height.
func (h *Harness) EndBlock(height int64) types.ResponseEndBlock {
	h.t.Helper()
	h.observe(types.KindEndBlock)
	resp, err := h.conn.EndBlock(context.Background(), types.RequestEndBlock{Height: height})
	if err != nil {
		h.t.Fatalf("EndBlock (height=%d) failed: %v", height, err)
	}
	return resp
}

// Commit commits the closed block.
func (h *Harness) Commit() types.ResponseCommit {
	h.t.Helper()
	h.observe(types.KindCommit)
	resp, err := h.conn.Commit(context.Background())
	if err != nil {
		h.t.Fatalf("Commit failed: %v", err)
	}
	return resp
}

// BlockResult collects the responses of one full block.
type BlockResult struct {
	Txs    []types.ResponseDeliverTx
	End    types.ResponseEndBlock
	Commit types.ResponseCommit
}

// ExecuteBlock runs BeginBlock, DeliverTx for each tx and EndBlock.
func (h *Harness) ExecuteBlock(height int64, txs ...[]byte) ([]types.ResponseDeliverTx, types.ResponseEndBlock) {
	h.t.Helper()
	h.BeginBlock(height)
	results := make([]types.ResponseDeliverTx, 0, len(txs))
	for _, tx := range txs {
		results = append(results, h.DeliverTx(tx))
	}
	return results, h.EndBlock(height)
}

// ExecuteAndCommit is a convenience that executes a block and
// commits it.
func (h *Harness) ExecuteAndCommit(height int64, txs ...[]byte) BlockResult {
	h.t.Helper()
	results, end := h.ExecuteBlock(height, txs...)
	return BlockResult{Txs: results, End: end, Commit: h.Commit()}
}

// CheckTx submits a transaction for mempool gate-checking.
func (h *Harness) CheckTx(tx []byte) types.ResponseCheckTx {
	h.t.Helper()
	resp, err := h.conn.CheckTx(context.Background(), MakeCheckTx(tx))
	if err != nil {
		h.t.Fatalf("CheckTx failed: %v", err)
	}
	return resp
}

// RecheckTx re-validates a previously admitted transaction.
func (h *Harness) RecheckTx(tx []byte) types.ResponseCheckTx {
	h.t.Helper()
	resp, err := h.conn.CheckTx(context.Background(), types.RequestCheckTx{Tx: tx, Type: types.CheckTxRecheck})
	if err != nil {
		h.t.Fatalf("RecheckTx failed: %v", err)
	}
	return resp
}

// Query reads application state at the latest height.
func (h *Harness) Query(path string, data []byte) types.ResponseQuery {
	h.t.Helper()
	resp, err := h.conn.Query(context.Background(), types.RequestQuery{Path: path, Data: data})
	if err != nil {
		h.t.Fatalf("Query failed: %v", err)
	}
	return resp
}

// MustAcceptTx asserts that a transaction is accepted.
func (h *Harness) MustAcceptTx(tx []byte) {
	h.t.Helper()
	if r := h.CheckTx(tx); !r.OK() {
		h.t.Fatalf("expected tx accepted, got code=%d log=%q", r.Code, r.Log)
	}
}

// MustRejectTx asserts that a transaction is rejected.
func (h *Harness) MustRejectTx(tx []byte) {
	h.t.Helper()
	if h.CheckTx(tx).OK() {
		h.t.Fatal("expected tx rejected, got accepted")
	}
}

// --- Helper Factories ---

var genesisTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// DefaultInitChain returns a minimal genesis call suitable for
// testing.
func DefaultInitChain() types.RequestInitChain {
	return types.RequestInitChain{
		Time:    types.TimeToTimestamp(genesisTime),
		ChainID: "test-chain",
		ConsensusParams: &types.ConsensusParams{
			Block:     types.BlockParams{MaxBytes: 1024 * 1024, MaxGas: -1},
			Evidence:  types.EvidenceParams{MaxAge: 100000},
			Validator: types.ValidatorParams{PubKeyTypes: []string{"ed25519"}},
		},
	}
}

// MakeBeginBlock creates a BeginBlock request for a block at height,
// five seconds after the previous one.
func MakeBeginBlock(height int64) types.RequestBeginBlock {
	t := genesisTime.Add(time.Duration(height) * 5 * time.Second)
	return types.RequestBeginBlock{
		Header: types.Header{
			ChainID: "test-chain",
			Height:  height,
			Time:    types.TimeToTimestamp(t),
		},
	}
}

// DefaultInfo returns the Info request the harness sends.
func DefaultInfo() types.RequestInfo {
	return types.RequestInfo{Version: "abcitest"}
}

// MakeCheckTx creates a first-seen CheckTx request.
func MakeCheckTx(tx []byte) types.RequestCheckTx {
	return types.RequestCheckTx{Tx: tx, Type: types.CheckTxNew}
}
