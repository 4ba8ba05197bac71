// Package server runs ABCI applications behind the socket protocol:
// it accepts connections, decodes framed requests, dispatches them to
// the application in order and writes the responses back.
package server

import (
	"fmt"
	"sync/atomic"

	"github.com/blockberries/abci/types"
)

// cycleState is a position in the block cycle of one connection.
type cycleState uint32

const (
	// stateInit: nothing on the consensus path has been seen yet.
	// InitChain or, on a restart, BeginBlock may follow.
	stateInit cycleState = iota
	// stateReady: between blocks. BeginBlock is the only valid next
	// consensus call.
	stateReady
	// stateInBlock: BeginBlock returned. DeliverTx or EndBlock follow.
	stateInBlock
	// stateEnded: EndBlock returned. Commit is the only valid next call.
	stateEnded
)

func (s cycleState) String() string {
	switch s {
	case stateInit:
		return "Init"
	case stateReady:
		return "Ready"
	case stateInBlock:
		return "InBlock"
	case stateEnded:
		return "Ended"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// CycleViolation describes a consensus call that arrived out of the
// InitChain, BeginBlock, DeliverTx*, EndBlock, Commit order.
type CycleViolation struct {
	Kind  types.Kind
	State string
}

func (v *CycleViolation) Error() string {
	return fmt.Sprintf("%s received in state %s", v.Kind, v.State)
}

// CycleTracker follows the block cycle of one connection. It only
// observes: a violation is reported and the tracker moves to the state
// the call implies, so one bad call yields one violation.
type CycleTracker struct {
	state      atomic.Uint32
	violations atomic.Uint64
}

// NewCycleTracker creates a tracker in the Init state.
func NewCycleTracker() *CycleTracker {
	return &CycleTracker{}
}

// State returns the current cycle state.
func (c *CycleTracker) State() string {
	return cycleState(c.state.Load()).String()
}

// Violations returns the number of violations observed so far.
func (c *CycleTracker) Violations() uint64 {
	return c.violations.Load()
}

// Observe records a request of kind k. Non-consensus kinds are
// ignored. It returns a *CycleViolation when k is out of order.
func (c *CycleTracker) Observe(k types.Kind) error {
	if !k.Consensus() {
		return nil
	}
	cur := cycleState(c.state.Load())
	var (
		ok   bool
		next cycleState
	)
	switch k {
	case types.KindInitChain:
		ok, next = cur == stateInit, stateReady
	case types.KindBeginBlock:
		ok, next = cur == stateInit || cur == stateReady, stateInBlock
	case types.KindDeliverTx:
		ok, next = cur == stateInBlock, stateInBlock
	case types.KindEndBlock:
		ok, next = cur == stateInBlock, stateEnded
	case types.KindCommit:
		ok, next = cur == stateEnded, stateReady
	}
	c.state.Store(uint32(next))
	if ok {
		return nil
	}
	c.violations.Add(1)
	return &CycleViolation{Kind: k, State: cur.String()}
}

// InBlock reports whether a block is open.
func (c *CycleTracker) InBlock() bool {
	return cycleState(c.state.Load()) == stateInBlock
}
