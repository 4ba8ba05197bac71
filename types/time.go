package types

import (
	"fmt"
	"time"
)

// Timestamp has the layout of google.protobuf.Timestamp: whole seconds
// since the Unix epoch plus a non-negative nanosecond remainder.
type Timestamp struct {
	Seconds int64 `cramberry:"1"`
	Nanos   int32 `cramberry:"2"`
}

// TimeToTimestamp converts t, dropping its location and monotonic
// clock reading.
func TimeToTimestamp(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanos: int32(t.Nanosecond())}
}

// ToTime returns ts in UTC.
func (ts Timestamp) ToTime() time.Time {
	return time.Unix(ts.Seconds, int64(ts.Nanos)).UTC()
}

// IsZero reports whether ts is the Unix epoch, which is also the value
// of an absent timestamp field.
func (ts Timestamp) IsZero() bool {
	return ts.Seconds == 0 && ts.Nanos == 0
}

// Valid reports whether Nanos is within [0, 1e9).
func (ts Timestamp) Valid() bool {
	return ts.Nanos >= 0 && ts.Nanos < 1e9
}

func (ts Timestamp) String() string {
	if !ts.Valid() {
		return fmt.Sprintf("Timestamp(%d, %d)", ts.Seconds, ts.Nanos)
	}
	return ts.ToTime().Format(time.RFC3339Nano)
}
