package types

// ResponseEcho returns the echoed message.
type ResponseEcho struct {
	Message string `cramberry:"1"`
}

// ResponseFlush acknowledges that every earlier response on the
// connection has been written.
type ResponseFlush struct{}

// ResponseInfo reports the application's last committed state.
type ResponseInfo struct {
	Data             string `cramberry:"1"`
	Version          string `cramberry:"2"`
	AppVersion       uint64 `cramberry:"3"`
	LastBlockHeight  int64  `cramberry:"4"`
	LastBlockAppHash []byte `cramberry:"5"`
}

// ResponseSetOption is the result of a SetOption call.
type ResponseSetOption struct {
	Code uint32 `cramberry:"1"`
	Log  string `cramberry:"2"`
	Info string `cramberry:"3"`
}

// ResponseInitChain optionally overrides the genesis consensus
// parameters and validator set.
type ResponseInitChain struct {
	ConsensusParams *ConsensusParams  `cramberry:"1"`
	Validators      []ValidatorUpdate `cramberry:"2"`
}

// ResponseQuery is the result of a state query.
type ResponseQuery struct {
	Code      uint32 `cramberry:"1"`
	Log       string `cramberry:"2"`
	Info      string `cramberry:"3"`
	Index     int64  `cramberry:"4"`
	Key       []byte `cramberry:"5"`
	Value     []byte `cramberry:"6"`
	Proof     *Proof `cramberry:"7"`
	Height    int64  `cramberry:"8"`
	Codespace string `cramberry:"9"`
}

// ResponseBeginBlock carries block-level events.
type ResponseBeginBlock struct {
	Events []Event `cramberry:"1"`
}

// ResponseCheckTx is the mempool admission verdict. A nonzero code
// keeps the transaction out of the mempool.
type ResponseCheckTx struct {
	Code      uint32  `cramberry:"1"`
	Data      []byte  `cramberry:"2"`
	Log       string  `cramberry:"3"`
	Info      string  `cramberry:"4"`
	GasWanted int64   `cramberry:"5"`
	GasUsed   int64   `cramberry:"6"`
	Events    []Event `cramberry:"7"`
	Codespace string  `cramberry:"8"`
}

// ResponseDeliverTx is the result of executing one transaction. A
// nonzero code rejects only that transaction's effect.
type ResponseDeliverTx struct {
	Code      uint32  `cramberry:"1"`
	Data      []byte  `cramberry:"2"`
	Log       string  `cramberry:"3"`
	Info      string  `cramberry:"4"`
	GasWanted int64   `cramberry:"5"`
	GasUsed   int64   `cramberry:"6"`
	Events    []Event `cramberry:"7"`
	Codespace string  `cramberry:"8"`
}

// ResponseEndBlock carries validator set and consensus parameter
// changes. Nil ConsensusParamUpdates = no change.
type ResponseEndBlock struct {
	ValidatorUpdates      []ValidatorUpdate `cramberry:"1"`
	ConsensusParamUpdates *ConsensusParams  `cramberry:"2"`
	Events                []Event           `cramberry:"3"`
}

// ResponseCommit carries the application state root after the block.
type ResponseCommit struct {
	Code uint32 `cramberry:"1"`
	Data []byte `cramberry:"2"`
}

// OK returns true if the transaction was admitted.
func (r ResponseCheckTx) OK() bool { return r.Code == CodeTypeOK }

// OK returns true if the transaction executed successfully.
func (r ResponseDeliverTx) OK() bool { return r.Code == CodeTypeOK }

func (ResponseEcho) Kind() Kind       { return KindEcho }
func (ResponseFlush) Kind() Kind      { return KindFlush }
func (ResponseInfo) Kind() Kind       { return KindInfo }
func (ResponseSetOption) Kind() Kind  { return KindSetOption }
func (ResponseInitChain) Kind() Kind  { return KindInitChain }
func (ResponseQuery) Kind() Kind      { return KindQuery }
func (ResponseBeginBlock) Kind() Kind { return KindBeginBlock }
func (ResponseCheckTx) Kind() Kind    { return KindCheckTx }
func (ResponseDeliverTx) Kind() Kind  { return KindDeliverTx }
func (ResponseEndBlock) Kind() Kind   { return KindEndBlock }
func (ResponseCommit) Kind() Kind     { return KindCommit }

func (ResponseEcho) ResultCode() uint32        { return CodeTypeOK }
func (ResponseFlush) ResultCode() uint32       { return CodeTypeOK }
func (ResponseInfo) ResultCode() uint32        { return CodeTypeOK }
func (r ResponseSetOption) ResultCode() uint32 { return r.Code }
func (ResponseInitChain) ResultCode() uint32   { return CodeTypeOK }
func (r ResponseQuery) ResultCode() uint32     { return r.Code }
func (ResponseBeginBlock) ResultCode() uint32  { return CodeTypeOK }
func (r ResponseCheckTx) ResultCode() uint32   { return r.Code }
func (r ResponseDeliverTx) ResultCode() uint32 { return r.Code }
func (ResponseEndBlock) ResultCode() uint32    { return CodeTypeOK }
func (r ResponseCommit) ResultCode() uint32    { return r.Code }

func (ResponseEcho) isResponse()       {}
func (ResponseFlush) isResponse()      {}
func (ResponseInfo) isResponse()       {}
func (ResponseSetOption) isResponse()  {}
func (ResponseInitChain) isResponse()  {}
func (ResponseQuery) isResponse()      {}
func (ResponseBeginBlock) isResponse() {}
func (ResponseCheckTx) isResponse()    {}
func (ResponseDeliverTx) isResponse()  {}
func (ResponseEndBlock) isResponse()   {}
func (ResponseCommit) isResponse()     {}
