package types

// KVPair is a single key-value tag within an event.
type KVPair struct {
	Key   []byte `cramberry:"1"`
	Value []byte `cramberry:"2"`
}

// Event is an application-emitted event.
type Event struct {
	Type       string   `cramberry:"1"`
	Attributes []KVPair `cramberry:"2"`
}
