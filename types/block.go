package types

// Header is the block header delivered with BeginBlock. The engine
// decodes its declared fields and never interprets them.
type Header struct {
	Version  Version   `cramberry:"1"`
	ChainID  string    `cramberry:"2"`
	Height   int64     `cramberry:"3"`
	Time     Timestamp `cramberry:"4"`
	NumTxs   int64     `cramberry:"5"`
	TotalTxs int64     `cramberry:"6"`

	LastBlockID BlockID `cramberry:"7"`

	// Hashes of block data.
	LastCommitHash []byte `cramberry:"8"`
	DataHash       []byte `cramberry:"9"`

	// Hashes from the application output of the previous block.
	ValidatorsHash     []byte `cramberry:"10"`
	NextValidatorsHash []byte `cramberry:"11"`
	ConsensusHash      []byte `cramberry:"12"`
	AppHash            []byte `cramberry:"13"`
	LastResultsHash    []byte `cramberry:"14"`

	EvidenceHash    []byte `cramberry:"15"`
	ProposerAddress []byte `cramberry:"16"`
}

// Version carries the block and application protocol versions.
type Version struct {
	Block uint64 `cramberry:"1"`
	App   uint64 `cramberry:"2"`
}

// BlockID uniquely identifies a block.
type BlockID struct {
	Hash        []byte        `cramberry:"1"`
	PartsHeader PartSetHeader `cramberry:"2"`
}

// PartSetHeader identifies the parts a block was split into.
type PartSetHeader struct {
	Total int32  `cramberry:"1"`
	Hash  []byte `cramberry:"2"`
}

// LastCommitInfo describes the votes that committed the previous
// block.
type LastCommitInfo struct {
	Round int32      `cramberry:"1"`
	Votes []VoteInfo `cramberry:"2"`
}

// VoteInfo records whether a validator signed the previous block.
type VoteInfo struct {
	Validator       Validator `cramberry:"1"`
	SignedLastBlock bool      `cramberry:"2"`
}
