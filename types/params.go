package types

// ConsensusParams contains consensus-critical parameters the
// application can set at InitChain or change at EndBlock.
type ConsensusParams struct {
	Block     BlockParams     `cramberry:"1"`
	Evidence  EvidenceParams  `cramberry:"2"`
	Validator ValidatorParams `cramberry:"3"`
}

// BlockParams limits block size. MaxGas = -1 means unlimited.
type BlockParams struct {
	MaxBytes int64 `cramberry:"1"`
	MaxGas   int64 `cramberry:"2"`
}

// EvidenceParams bounds how old evidence may be, in blocks.
type EvidenceParams struct {
	MaxAge int64 `cramberry:"1"`
}

// ValidatorParams lists the accepted validator public key types.
type ValidatorParams struct {
	PubKeyTypes []string `cramberry:"1"`
}
