// Package frame splits a byte stream into length-delimited messages.
//
// Each frame is an unsigned base-128 varint holding the body length
// (7 data bits per byte, high bit set on every byte but the last)
// followed by the body itself.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// DefaultMaxFrameSize bounds a single frame body.
	DefaultMaxFrameSize uint64 = 64 << 20
	// MaxPrefixLen is the longest legal length prefix.
	MaxPrefixLen = binary.MaxVarintLen64
)

var (
	ErrFrameTooLarge  = errors.New("frame: length prefix exceeds maximum frame size")
	ErrPrefixOverflow = errors.New("frame: length prefix does not terminate within 10 bytes")
)

// FramingError is a fatal framing condition. Offset is the stream
// position of the offending length prefix.
type FramingError struct {
	Offset int64
	Length uint64
	Err    error
}

func (e *FramingError) Error() string {
	if errors.Is(e.Err, ErrFrameTooLarge) {
		return fmt.Sprintf("%v: %d bytes at stream offset %d", e.Err, e.Length, e.Offset)
	}
	return fmt.Sprintf("%v (stream offset %d)", e.Err, e.Offset)
}

func (e *FramingError) Unwrap() error { return e.Err }

// Append appends the framed body to dst.
func Append(dst, body []byte) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(body)))
	return append(dst, body...)
}

// Encode returns body prefixed with its length.
func Encode(body []byte) []byte {
	return Append(make([]byte, 0, len(body)+MaxPrefixLen), body)
}

// Write writes one framed body to w in a single call.
func Write(w io.Writer, body []byte) error {
	_, err := w.Write(Encode(body))
	return err
}
