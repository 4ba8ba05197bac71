package types

import "fmt"

// CheckTxType tells the application whether a transaction is seen
// for the first time or re-checked after a commit.
type CheckTxType int32

const (
	// CheckTxNew requires a full check.
	CheckTxNew CheckTxType = 0
	// CheckTxRecheck is a mempool re-validation of an admitted tx.
	CheckTxRecheck CheckTxType = 1
)

func (t CheckTxType) String() string {
	switch t {
	case CheckTxNew:
		return "New"
	case CheckTxRecheck:
		return "Recheck"
	default:
		return fmt.Sprintf("CheckTxType(%d)", int32(t))
	}
}
