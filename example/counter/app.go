// Package counter implements the reference ABCI application: a
// counter of delivered transactions.
//
// In serial mode (SetOption "serial" = "on") a transaction must encode
// the next count: up to 8 bytes, left-padded with zeros and read as a
// big-endian uint64, equal to count+1. Otherwise every transaction is
// accepted.
package counter

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/blockberries/abci"
	"github.com/blockberries/abci/types"
)

// Result codes.
const (
	CodeTypeOK            uint32 = 0
	CodeTypeEncodingError uint32 = 1
	CodeTypeBadCount      uint32 = 3
)

// QueryKey is the key reported by Query.
const QueryKey = "count"

// Compile-time interface check.
var _ abci.Application = (*App)(nil)

// App counts transactions. One App may be shared by every connection
// of a server: mutations are serialized by one lock, and CheckTx,
// Query and Info read the last committed snapshot without taking it.
type App struct {
	log    zerolog.Logger
	store  Store
	serial atomic.Bool

	mu   sync.Mutex
	live State

	committed atomic.Pointer[State]
}

// Option configures an App.
type Option func(*App)

// WithSerial starts the app in serial mode.
func WithSerial(on bool) Option {
	return func(app *App) { app.serial.Store(on) }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(app *App) { app.log = l }
}

// New creates a counter backed by memory, starting at zero in
// permissive mode.
func New(opts ...Option) *App {
	app, err := Open(NewMemStore(), opts...)
	if err != nil {
		// A fresh MemStore cannot fail to load.
		panic(err)
	}
	return app
}

// Open creates a counter resuming from the state saved in store.
func Open(store Store, opts ...Option) (*App, error) {
	s, err := store.Load()
	if err != nil {
		return nil, err
	}
	app := &App{log: zerolog.Nop(), store: store, live: s}
	for _, opt := range opts {
		opt(app)
	}
	snap := s
	app.committed.Store(&snap)
	return app, nil
}

// Count returns the live count, including transactions of the block
// in progress.
func (app *App) Count() uint64 {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.live.TxCount
}

// Serial reports whether serial mode is on.
func (app *App) Serial() bool { return app.serial.Load() }

// Committed returns the last committed state.
func (app *App) Committed() State {
	return *app.committed.Load()
}

// Close closes the store.
func (app *App) Close() error { return app.store.Close() }

func (app *App) Info(_ context.Context, req types.RequestInfo) (types.ResponseInfo, error) {
	s := app.committed.Load()
	return types.ResponseInfo{
		Data:             fmt.Sprintf(`{"hashes":%d,"txs":%d}`, s.Hashes, s.TxCount),
		Version:          req.Version,
		LastBlockHeight:  s.Height,
		LastBlockAppHash: s.AppHash,
	}, nil
}

func (app *App) SetOption(_ context.Context, req types.RequestSetOption) (types.ResponseSetOption, error) {
	app.mu.Lock()
	defer app.mu.Unlock()
	if req.Key == "serial" {
		app.serial.Store(req.Value == "on")
	}
	return types.ResponseSetOption{Log: fmt.Sprintf("key: %s value: %s", req.Key, req.Value)}, nil
}

func (app *App) Query(_ context.Context, req types.RequestQuery) (types.ResponseQuery, error) {
	s := app.committed.Load()
	return types.ResponseQuery{
		Key:    []byte(QueryKey),
		Value:  binary.BigEndian.AppendUint64(nil, s.TxCount),
		Proof:  &types.Proof{},
		Height: req.Height,
		Log:    "query",
	}, nil
}

func (app *App) Echo(_ context.Context, req types.RequestEcho) (types.ResponseEcho, error) {
	return types.ResponseEcho{Message: req.Message}, nil
}

// CheckTx validates against the committed count.
func (app *App) CheckTx(_ context.Context, req types.RequestCheckTx) (types.ResponseCheckTx, error) {
	if app.serial.Load() {
		if code, log := validate(req.Tx, app.committed.Load().TxCount); code != CodeTypeOK {
			return types.ResponseCheckTx{Code: code, Log: log}, nil
		}
	}
	return types.ResponseCheckTx{Log: "All good"}, nil
}

func (app *App) InitChain(_ context.Context, _ types.RequestInitChain) (types.ResponseInitChain, error) {
	app.mu.Lock()
	defer app.mu.Unlock()
	app.live.TxCount = 0
	return types.ResponseInitChain{
		ConsensusParams: &types.ConsensusParams{
			Block:     types.BlockParams{MaxBytes: 4096, MaxGas: 1000},
			Evidence:  types.EvidenceParams{MaxAge: 10000},
			Validator: types.ValidatorParams{PubKeyTypes: []string{"ed25519"}},
		},
	}, nil
}

func (app *App) BeginBlock(_ context.Context, req types.RequestBeginBlock) (types.ResponseBeginBlock, error) {
	app.mu.Lock()
	defer app.mu.Unlock()
	app.live.Hashes++
	app.live.Height = req.Header.Height
	return types.ResponseBeginBlock{}, nil
}

func (app *App) DeliverTx(_ context.Context, req types.RequestDeliverTx) (types.ResponseDeliverTx, error) {
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.serial.Load() {
		if code, log := validate(req.Tx, app.live.TxCount); code != CodeTypeOK {
			return types.ResponseDeliverTx{Code: code, Log: log}, nil
		}
	}
	app.live.TxCount++
	return types.ResponseDeliverTx{}, nil
}

func (app *App) EndBlock(_ context.Context, _ types.RequestEndBlock) (types.ResponseEndBlock, error) {
	return types.ResponseEndBlock{
		ConsensusParamUpdates: &types.ConsensusParams{
			Block:     types.BlockParams{MaxBytes: 22020096, MaxGas: -1},
			Evidence:  types.EvidenceParams{MaxAge: 100000},
			Validator: types.ValidatorParams{PubKeyTypes: []string{"ed25519"}},
		},
	}, nil
}

// Commit publishes the live state and returns the big-endian count as
// the state root. A store failure is a fault.
func (app *App) Commit(_ context.Context) (types.ResponseCommit, error) {
	app.mu.Lock()
	defer app.mu.Unlock()

	prev := app.committed.Load()
	if app.live.Height <= prev.Height {
		app.live.Height = prev.Height + 1
	}
	app.live.AppHash = binary.BigEndian.AppendUint64(nil, app.live.TxCount)

	if err := app.store.Save(app.live); err != nil {
		return types.ResponseCommit{}, err
	}
	snap := app.live
	app.committed.Store(&snap)

	app.log.Debug().
		Int64("height", snap.Height).
		Uint64("txs", snap.TxCount).
		Msg("committed")
	return types.ResponseCommit{Data: snap.AppHash}, nil
}

// validate checks that tx encodes count+1.
func validate(tx []byte, count uint64) (uint32, string) {
	if len(tx) > 8 {
		return CodeTypeEncodingError, fmt.Sprintf("tx is %d bytes, max 8", len(tx))
	}
	var padded [8]byte
	copy(padded[8-len(tx):], tx)
	if binary.BigEndian.Uint64(padded[:]) != count+1 {
		return CodeTypeBadCount, "bad count"
	}
	return CodeTypeOK, ""
}

// EncodeTx returns the minimal big-endian encoding of n, the wire form
// of the n-th serial transaction.
func EncodeTx(n uint64) []byte {
	b := binary.BigEndian.AppendUint64(nil, n)
	i := 0
	for i < len(b)-1 && b[i] == 0 {
		i++
	}
	return b[i:]
}
