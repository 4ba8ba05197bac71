package types

// Validator identifies a validator by address and voting power.
type Validator struct {
	Address []byte `cramberry:"1"`
	Power   int64  `cramberry:"2"`
}

// PubKey is a typed validator public key (e.g. "ed25519").
type PubKey struct {
	Type string `cramberry:"1"`
	Data []byte `cramberry:"2"`
}

// ValidatorUpdate represents a change to the validator set.
// Power = 0 means removal of the validator.
type ValidatorUpdate struct {
	PubKey PubKey `cramberry:"1"`
	Power  int64  `cramberry:"2"`
}
