package types

// Proof is a Merkle proof against the application state root.
type Proof struct {
	Ops []ProofOp `cramberry:"1"`
}

// ProofOp is a single operation in a Merkle proof.
type ProofOp struct {
	Type string `cramberry:"1"`
	Key  []byte `cramberry:"2"`
	Data []byte `cramberry:"3"`
}
