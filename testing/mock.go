// Package abcitest provides test utilities for ABCI application
// development, including a configurable mock, a test harness,
// and a block-cycle compliance test suite.
package abcitest

import (
	"context"
	"sync/atomic"

	"github.com/blockberries/abci"
	"github.com/blockberries/abci/types"
)

// Compile-time check that MockApp satisfies all interfaces.
var (
	_ abci.Application = (*MockApp)(nil)
	_ abci.Flusher     = (*MockApp)(nil)
)

// MockApp is a configurable mock ABCI application for engine testing.
// All methods are configurable via function fields. Unconfigured
// methods return success with empty payloads; Echo echoes.
type MockApp struct {
	// Configurable handlers. If nil, defaults are used.
	InfoFn       func(context.Context, types.RequestInfo) (types.ResponseInfo, error)
	SetOptionFn  func(context.Context, types.RequestSetOption) (types.ResponseSetOption, error)
	QueryFn      func(context.Context, types.RequestQuery) (types.ResponseQuery, error)
	CheckTxFn    func(context.Context, types.RequestCheckTx) (types.ResponseCheckTx, error)
	InitChainFn  func(context.Context, types.RequestInitChain) (types.ResponseInitChain, error)
	BeginBlockFn func(context.Context, types.RequestBeginBlock) (types.ResponseBeginBlock, error)
	DeliverTxFn  func(context.Context, types.RequestDeliverTx) (types.ResponseDeliverTx, error)
	EndBlockFn   func(context.Context, types.RequestEndBlock) (types.ResponseEndBlock, error)
	CommitFn     func(context.Context) (types.ResponseCommit, error)
	FlushFn      func(context.Context) error

	// Call counters (atomic for concurrent access).
	InfoCalls       atomic.Int64
	SetOptionCalls  atomic.Int64
	QueryCalls      atomic.Int64
	EchoCalls       atomic.Int64
	CheckTxCalls    atomic.Int64
	InitChainCalls  atomic.Int64
	BeginBlockCalls atomic.Int64
	DeliverTxCalls  atomic.Int64
	EndBlockCalls   atomic.Int64
	CommitCalls     atomic.Int64
	FlushCalls      atomic.Int64
}

func (m *MockApp) Info(ctx context.Context, req types.RequestInfo) (types.ResponseInfo, error) {
	m.InfoCalls.Add(1)
	if m.InfoFn != nil {
		return m.InfoFn(ctx, req)
	}
	return types.ResponseInfo{}, nil
}

func (m *MockApp) SetOption(ctx context.Context, req types.RequestSetOption) (types.ResponseSetOption, error) {
	m.SetOptionCalls.Add(1)
	if m.SetOptionFn != nil {
		return m.SetOptionFn(ctx, req)
	}
	return types.ResponseSetOption{}, nil
}

func (m *MockApp) Query(ctx context.Context, req types.RequestQuery) (types.ResponseQuery, error) {
	m.QueryCalls.Add(1)
	if m.QueryFn != nil {
		return m.QueryFn(ctx, req)
	}
	return types.ResponseQuery{Height: req.Height}, nil
}

func (m *MockApp) Echo(_ context.Context, req types.RequestEcho) (types.ResponseEcho, error) {
	m.EchoCalls.Add(1)
	return types.ResponseEcho{Message: req.Message}, nil
}

func (m *MockApp) CheckTx(ctx context.Context, req types.RequestCheckTx) (types.ResponseCheckTx, error) {
	m.CheckTxCalls.Add(1)
	if m.CheckTxFn != nil {
		return m.CheckTxFn(ctx, req)
	}
	return types.ResponseCheckTx{}, nil
}

func (m *MockApp) InitChain(ctx context.Context, req types.RequestInitChain) (types.ResponseInitChain, error) {
	m.InitChainCalls.Add(1)
	if m.InitChainFn != nil {
		return m.InitChainFn(ctx, req)
	}
	return types.ResponseInitChain{}, nil
}

func (m *MockApp) BeginBlock(ctx context.Context, req types.RequestBeginBlock) (types.ResponseBeginBlock, error) {
	m.BeginBlockCalls.Add(1)
	if m.BeginBlockFn != nil {
		return m.BeginBlockFn(ctx, req)
	}
	return types.ResponseBeginBlock{}, nil
}

func (m *MockApp) DeliverTx(ctx context.Context, req types.RequestDeliverTx) (types.ResponseDeliverTx, error) {
	m.DeliverTxCalls.Add(1)
	if m.DeliverTxFn != nil {
		return m.DeliverTxFn(ctx, req)
	}
	return types.ResponseDeliverTx{}, nil
}

func (m *MockApp) EndBlock(ctx context.Context, req types.RequestEndBlock) (types.ResponseEndBlock, error) {
	m.EndBlockCalls.Add(1)
	if m.EndBlockFn != nil {
		return m.EndBlockFn(ctx, req)
	}
	return types.ResponseEndBlock{}, nil
}

func (m *MockApp) Commit(ctx context.Context) (types.ResponseCommit, error) {
	m.CommitCalls.Add(1)
	if m.CommitFn != nil {
		return m.CommitFn(ctx)
	}
	return types.ResponseCommit{Data: []byte{0x01}}, nil
}

func (m *MockApp) Flush(ctx context.Context) error {
	m.FlushCalls.Add(1)
	if m.FlushFn != nil {
		return m.FlushFn(ctx)
	}
	return nil
}
