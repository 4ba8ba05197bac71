// Package types defines the message model of the ABCI socket
// protocol: the Request and Response sum types and the records they
// carry between the consensus engine and the application.
//
// These are plain Go structs with cramberry struct tags for
// deterministic binary serialization on the gRPC transport. The
// socket wire encoding lives in the wire package.
package types

import "fmt"

// Kind identifies one variant of the Request and Response unions.
type Kind uint8

const (
	KindEcho Kind = iota + 1
	KindFlush
	KindInfo
	KindSetOption
	KindInitChain
	KindQuery
	KindBeginBlock
	KindCheckTx
	KindDeliverTx
	KindEndBlock
	KindCommit
)

// Kinds returns every variant kind in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindEcho, KindFlush, KindInfo, KindSetOption, KindInitChain,
		KindQuery, KindBeginBlock, KindCheckTx, KindDeliverTx,
		KindEndBlock, KindCommit,
	}
}

func (k Kind) String() string {
	switch k {
	case KindEcho:
		return "Echo"
	case KindFlush:
		return "Flush"
	case KindInfo:
		return "Info"
	case KindSetOption:
		return "SetOption"
	case KindInitChain:
		return "InitChain"
	case KindQuery:
		return "Query"
	case KindBeginBlock:
		return "BeginBlock"
	case KindCheckTx:
		return "CheckTx"
	case KindDeliverTx:
		return "DeliverTx"
	case KindEndBlock:
		return "EndBlock"
	case KindCommit:
		return "Commit"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Consensus reports whether the kind belongs to the block cycle
// driven on the consensus connection.
func (k Kind) Consensus() bool {
	switch k {
	case KindInitChain, KindBeginBlock, KindDeliverTx, KindEndBlock, KindCommit:
		return true
	}
	return false
}

// Request is one of the Request* variants. The set is closed: only
// types in this package implement it.
type Request interface {
	Kind() Kind
	isRequest()
}

// Response is one of the Response* variants.
type Response interface {
	Kind() Kind
	// ResultCode is the application result code. 0 = OK. Variants
	// without a code field always report CodeTypeOK.
	ResultCode() uint32
	isResponse()
}

// CodeTypeOK is the result code for success. Any other value is an
// application-defined failure.
const CodeTypeOK uint32 = 0
