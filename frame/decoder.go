package frame

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// maxBufferable is the largest body a Decoder can hold in one slice.
const maxBufferable = uint64(math.MaxInt - MaxPrefixLen)

// Decoder is a streaming frame accumulator. Feed it bytes as they
// arrive and drain complete frames with Next; partial frames stay
// buffered, so chunk boundaries never change the decoded result.
//
// A Decoder is owned by one reader and is not safe for concurrent use.
type Decoder struct {
	max      uint64
	buf      []byte
	start    int
	consumed int64 // stream offset of buf[start]
	err      error
}

// NewDecoder creates a decoder rejecting frames larger than max.
// A zero max selects DefaultMaxFrameSize; a max above what one slice
// can hold is clamped.
func NewDecoder(max uint64) *Decoder {
	if max == 0 {
		max = DefaultMaxFrameSize
	}
	if max > maxBufferable {
		max = maxBufferable
	}
	return &Decoder{max: max}
}

// Feed appends p to the pending input. Feed is a no-op once the
// decoder has failed.
func (d *Decoder) Feed(p []byte) {
	if d.err != nil || len(p) == 0 {
		return
	}
	switch {
	case d.start == len(d.buf):
		d.buf = d.buf[:0]
		d.start = 0
	case d.start > cap(d.buf)/2:
		n := copy(d.buf, d.buf[d.start:])
		d.buf = d.buf[:n]
		d.start = 0
	}
	d.buf = append(d.buf, p...)
}

// Next returns the next complete frame body. ok is false when more
// input is needed. The returned slice aliases the decoder's buffer and
// is valid until the next call to Feed.
//
// Framing errors are sticky: every later call returns the same error.
func (d *Decoder) Next() (body []byte, ok bool, err error) {
	if d.err != nil {
		return nil, false, d.err
	}
	pending := d.buf[d.start:]
	size, n := binary.Uvarint(pending)
	switch {
	case n == 0:
		return nil, false, nil
	case n < 0:
		d.err = &FramingError{Offset: d.consumed, Err: ErrPrefixOverflow}
		return nil, false, d.err
	case size > d.max:
		d.err = &FramingError{Offset: d.consumed, Length: size, Err: ErrFrameTooLarge}
		return nil, false, d.err
	}
	if size > uint64(len(pending)-n) {
		return nil, false, nil
	}
	total := n + int(size)
	body = pending[n:total:total]
	d.start += total
	d.consumed += int64(total)
	return body, true, nil
}

// Buffered returns the number of bytes held for incomplete frames.
func (d *Decoder) Buffered() int {
	return len(d.buf) - d.start
}

// Offset returns the stream offset of the next undecoded byte.
func (d *Decoder) Offset() int64 {
	return d.consumed
}

// Reader reads whole frames from an io.Reader.
type Reader struct {
	r   io.Reader
	dec *Decoder
	buf []byte
}

// NewReader wraps r. A zero max selects DefaultMaxFrameSize.
func NewReader(r io.Reader, max uint64) *Reader {
	return &Reader{r: r, dec: NewDecoder(max), buf: make([]byte, 32*1024)}
}

// ReadFrame blocks until a complete frame is available. It returns
// io.EOF when the stream ends on a frame boundary and
// io.ErrUnexpectedEOF when it ends inside a frame. The returned slice
// is valid until the next call.
func (r *Reader) ReadFrame() ([]byte, error) {
	for {
		body, ok, err := r.dec.Next()
		if err != nil {
			return nil, err
		}
		if ok {
			return body, nil
		}
		n, err := r.r.Read(r.buf)
		r.dec.Feed(r.buf[:n])
		if err != nil {
			if n > 0 {
				// Drain what arrived with the error first.
				if body, ok, derr := r.dec.Next(); derr != nil || ok {
					return body, derr
				}
			}
			if errors.Is(err, io.EOF) && r.dec.Buffered() > 0 {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
}
