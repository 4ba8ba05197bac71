package abcitest

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/blockberries/abci"
	"github.com/blockberries/abci/types"
)

// RunComplianceSuite runs a standard compliance test suite against
// an ABCI application to verify correct block-cycle behavior.
//
// The factory function should return a fresh application instance
// for each test.
func RunComplianceSuite(t *testing.T, factory func() abci.Application) {
	t.Helper()

	t.Run("echo", func(t *testing.T) {
		h := NewHarness(t, factory())
		resp, err := h.Conn().Echo(context.Background(), types.RequestEcho{Message: "compliance"})
		if err != nil {
			t.Fatalf("Echo failed: %v", err)
		}
		if resp.Message != "compliance" {
			t.Errorf("Echo returned %q, want %q", resp.Message, "compliance")
		}
	})

	t.Run("flush", func(t *testing.T) {
		h := NewHarness(t, factory())
		if err := h.Conn().Flush(context.Background()); err != nil {
			t.Fatalf("Flush failed: %v", err)
		}
	})

	t.Run("info_before_genesis", func(t *testing.T) {
		h := NewHarness(t, factory())
		if resp := h.Info(); resp.LastBlockHeight != 0 {
			t.Errorf("fresh app reports height %d, want 0", resp.LastBlockHeight)
		}
	})

	t.Run("execute_commit_cycle", func(t *testing.T) {
		h := NewHarness(t, factory())
		h.InitChainDefault()

		for i := int64(1); i <= 5; i++ {
			h.ExecuteAndCommit(i)
		}
		h.Info()
	})

	t.Run("empty_blocks_deterministic", func(t *testing.T) {
		// Execute same empty blocks on two instances, verify
		// identical commit data.
		h1 := NewHarness(t, factory())
		h1.InitChainDefault()
		h2 := NewHarness(t, factory())
		h2.InitChainDefault()

		for i := int64(1); i <= 3; i++ {
			o1 := h1.ExecuteAndCommit(i)
			o2 := h2.ExecuteAndCommit(i)
			if !bytes.Equal(o1.Commit.Data, o2.Commit.Data) {
				t.Errorf("height %d: non-deterministic: %x != %x",
					i, o1.Commit.Data, o2.Commit.Data)
			}
		}
	})

	t.Run("deterministic_with_txs", func(t *testing.T) {
		h1 := NewHarness(t, factory())
		h1.InitChainDefault()
		h2 := NewHarness(t, factory())
		h2.InitChainDefault()

		txs := [][]byte{{0x01}, {0x02}, {0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}}
		o1 := h1.ExecuteAndCommit(1, txs...)
		o2 := h2.ExecuteAndCommit(1, txs...)

		if !bytes.Equal(o1.Commit.Data, o2.Commit.Data) {
			t.Errorf("non-deterministic with txs: %x != %x",
				o1.Commit.Data, o2.Commit.Data)
		}
		for i := range o1.Txs {
			if o1.Txs[i].Code != o2.Txs[i].Code {
				t.Errorf("tx %d: code %d != %d", i, o1.Txs[i].Code, o2.Txs[i].Code)
			}
		}
	})

	t.Run("deliver_tx_result_per_tx", func(t *testing.T) {
		h := NewHarness(t, factory())
		h.InitChainDefault()

		outcome := h.ExecuteAndCommit(1, []byte{0x01}, []byte{0x02}, []byte{0x03})
		if len(outcome.Txs) != 3 {
			t.Fatalf("expected 3 tx results, got %d", len(outcome.Txs))
		}
	})

	t.Run("commit_data_stable_without_txs", func(t *testing.T) {
		h := NewHarness(t, factory())
		h.InitChainDefault()

		first := h.ExecuteAndCommit(1, []byte{0x01})
		second := h.ExecuteAndCommit(2)
		if !bytes.Equal(first.Commit.Data, second.Commit.Data) {
			t.Errorf("empty block changed commit data: %x -> %x",
				first.Commit.Data, second.Commit.Data)
		}
	})

	t.Run("concurrent_checktx", func(t *testing.T) {
		app := factory()
		h := NewHarness(t, app)
		h.InitChainDefault()
		h.ExecuteAndCommit(1)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := app.CheckTx(context.Background(), types.RequestCheckTx{Tx: []byte{0x01}})
				if err != nil {
					t.Errorf("concurrent CheckTx failed: %v", err)
				}
			}()
		}
		wg.Wait()
	})

	t.Run("concurrent_query", func(t *testing.T) {
		app := factory()
		h := NewHarness(t, app)
		h.InitChainDefault()
		h.ExecuteAndCommit(1)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := app.Query(context.Background(), types.RequestQuery{Path: "/test"})
				if err != nil {
					t.Errorf("concurrent Query failed: %v", err)
				}
			}()
		}
		wg.Wait()
	})
}
