package types

// RequestEcho asks the application to echo a message back.
type RequestEcho struct {
	Message string `cramberry:"1"`
}

// RequestFlush is the transport fence. It has no payload.
type RequestFlush struct{}

// RequestInfo is the handshake sent by a (re)connecting consensus
// engine to learn the application's last committed state.
type RequestInfo struct {
	Version      string `cramberry:"1"`
	BlockVersion uint64 `cramberry:"2"`
	P2PVersion   uint64 `cramberry:"3"`
}

// RequestSetOption sets a non-consensus application option.
type RequestSetOption struct {
	Key   string `cramberry:"1"`
	Value string `cramberry:"2"`
}

// RequestInitChain is sent once, at genesis.
type RequestInitChain struct {
	Time            Timestamp         `cramberry:"1"`
	ChainID         string            `cramberry:"2"`
	ConsensusParams *ConsensusParams  `cramberry:"3"`
	Validators      []ValidatorUpdate `cramberry:"4"`
	AppStateBytes   []byte            `cramberry:"5"`
}

// RequestQuery reads application state.
type RequestQuery struct {
	Data   []byte `cramberry:"1"`
	Path   string `cramberry:"2"`
	Height int64  `cramberry:"3"`
	Prove  bool   `cramberry:"4"`
}

// RequestBeginBlock opens the block cycle for Header.Height.
type RequestBeginBlock struct {
	Hash                []byte         `cramberry:"1"`
	Header              Header         `cramberry:"2"`
	LastCommitInfo      LastCommitInfo `cramberry:"3"`
	ByzantineValidators []Evidence     `cramberry:"4"`
}

// RequestCheckTx asks whether a transaction may enter the mempool.
type RequestCheckTx struct {
	Tx   []byte      `cramberry:"1"`
	Type CheckTxType `cramberry:"2"`
}

// RequestDeliverTx executes one transaction of the current block.
type RequestDeliverTx struct {
	Tx []byte `cramberry:"1"`
}

// RequestEndBlock closes the block cycle.
type RequestEndBlock struct {
	Height int64 `cramberry:"1"`
}

// RequestCommit asks the application to commit the block's state.
type RequestCommit struct{}

func (RequestEcho) Kind() Kind       { return KindEcho }
func (RequestFlush) Kind() Kind      { return KindFlush }
func (RequestInfo) Kind() Kind       { return KindInfo }
func (RequestSetOption) Kind() Kind  { return KindSetOption }
func (RequestInitChain) Kind() Kind  { return KindInitChain }
func (RequestQuery) Kind() Kind      { return KindQuery }
func (RequestBeginBlock) Kind() Kind { return KindBeginBlock }
func (RequestCheckTx) Kind() Kind    { return KindCheckTx }
func (RequestDeliverTx) Kind() Kind  { return KindDeliverTx }
func (RequestEndBlock) Kind() Kind   { return KindEndBlock }
func (RequestCommit) Kind() Kind     { return KindCommit }

func (RequestEcho) isRequest()       {}
func (RequestFlush) isRequest()      {}
func (RequestInfo) isRequest()       {}
func (RequestSetOption) isRequest()  {}
func (RequestInitChain) isRequest()  {}
func (RequestQuery) isRequest()      {}
func (RequestBeginBlock) isRequest() {}
func (RequestCheckTx) isRequest()    {}
func (RequestDeliverTx) isRequest()  {}
func (RequestEndBlock) isRequest()   {}
func (RequestCommit) isRequest()     {}
