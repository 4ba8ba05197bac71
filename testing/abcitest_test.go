package abcitest

import (
	"context"
	"testing"

	"github.com/blockberries/abci"
	"github.com/blockberries/abci/types"
)

func TestMockApp_Compliance(t *testing.T) {
	RunComplianceSuite(t, func() abci.Application { return &MockApp{} })
}

func TestMockApp_CountsCalls(t *testing.T) {
	app := &MockApp{}
	h := NewHarness(t, app)
	h.Info()
	h.InitChainDefault()
	h.ExecuteAndCommit(1, []byte("a"), []byte("b"))
	h.CheckTx([]byte("c"))
	h.Query("/x", nil)

	if got := app.InfoCalls.Load(); got != 1 {
		t.Errorf("InfoCalls = %d", got)
	}
	if got := app.InitChainCalls.Load(); got != 1 {
		t.Errorf("InitChainCalls = %d", got)
	}
	if got := app.BeginBlockCalls.Load(); got != 1 {
		t.Errorf("BeginBlockCalls = %d", got)
	}
	if got := app.DeliverTxCalls.Load(); got != 2 {
		t.Errorf("DeliverTxCalls = %d", got)
	}
	if got := app.EndBlockCalls.Load(); got != 1 {
		t.Errorf("EndBlockCalls = %d", got)
	}
	if got := app.CommitCalls.Load(); got != 1 {
		t.Errorf("CommitCalls = %d", got)
	}
	if got := app.CheckTxCalls.Load(); got != 1 {
		t.Errorf("CheckTxCalls = %d", got)
	}
	if got := app.QueryCalls.Load(); got != 1 {
		t.Errorf("QueryCalls = %d", got)
	}
}

func TestMockApp_CustomHandlers(t *testing.T) {
	app := &MockApp{
		CheckTxFn: func(_ context.Context, req types.RequestCheckTx) (types.ResponseCheckTx, error) {
			if len(req.Tx) == 0 {
				return types.ResponseCheckTx{Code: 1, Log: "empty"}, nil
			}
			return types.ResponseCheckTx{}, nil
		},
	}
	h := NewHarness(t, app)
	h.MustAcceptTx([]byte{0x01})
	h.MustRejectTx(nil)
}

func TestMakeBeginBlock(t *testing.T) {
	req := MakeBeginBlock(3)
	if req.Header.Height != 3 {
		t.Errorf("height = %d", req.Header.Height)
	}
	prev := MakeBeginBlock(2).Header.Time.ToTime()
	if !req.Header.Time.ToTime().After(prev) {
		t.Error("block times should increase with height")
	}
}
