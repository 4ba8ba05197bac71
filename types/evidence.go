package types

// Evidence represents proof of Byzantine behavior. The engine passes
// it through without interpretation.
type Evidence struct {
	Type             string    `cramberry:"1"`
	Validator        Validator `cramberry:"2"`
	Height           int64     `cramberry:"3"`
	Time             Timestamp `cramberry:"4"`
	TotalVotingPower int64     `cramberry:"5"`
}
