package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, d *Decoder) [][]byte {
	t.Helper()
	var out [][]byte
	for {
		body, ok, err := d.Next()
		require.NoError(t, err)
		if !ok {
			return out
		}
		out = append(out, append([]byte{}, body...))
	}
}

func TestEncode_Prefix(t *testing.T) {
	assert.Equal(t, []byte{0x00}, Encode(nil))
	assert.Equal(t, []byte{0x03, 'a', 'b', 'c'}, Encode([]byte("abc")))

	body := bytes.Repeat([]byte{0x7}, 300)
	enc := Encode(body)
	// 300 = 0b10_0101100 -> 0xAC 0x02
	assert.Equal(t, []byte{0xAC, 0x02}, enc[:2])
	assert.Equal(t, body, enc[2:])
}

func TestDecoder_RoundTrip(t *testing.T) {
	bodies := [][]byte{[]byte("hello"), {}, bytes.Repeat([]byte{0xFF}, 200), []byte("x")}
	var stream []byte
	for _, b := range bodies {
		stream = Append(stream, b)
	}

	d := NewDecoder(0)
	d.Feed(stream)
	got := drain(t, d)
	require.Len(t, got, len(bodies))
	for i := range bodies {
		assert.Equal(t, bodies[i], got[i], "frame %d", i)
	}
	assert.Zero(t, d.Buffered())
	assert.Equal(t, int64(len(stream)), d.Offset())
}

func TestDecoder_ZeroLengthBody(t *testing.T) {
	d := NewDecoder(0)
	d.Feed([]byte{0x00})
	body, ok, err := d.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, body)
}

func TestDecoder_ChunkIndependence(t *testing.T) {
	first := bytes.Repeat([]byte("ab"), 90) // 2-byte prefix
	second := []byte("second message")
	stream := Append(Encode(first), second)

	// Every way of splitting the stream into two or three nonempty
	// chunks decodes to the same two frames.
	for i := 1; i < len(stream); i++ {
		for j := i; j < len(stream); j++ {
			chunks := [][]byte{stream[:i], stream[i:j], stream[j:]}
			d := NewDecoder(0)
			var got [][]byte
			for _, c := range chunks {
				d.Feed(c)
				got = append(got, drain(t, d)...)
			}
			require.Len(t, got, 2, "split at %d/%d", i, j)
			require.Equal(t, first, got[0], "split at %d/%d", i, j)
			require.Equal(t, second, got[1], "split at %d/%d", i, j)
		}
	}
}

func TestDecoder_ByteAtATime(t *testing.T) {
	stream := Append(Append(nil, []byte("one")), []byte("two"))
	d := NewDecoder(0)
	var got [][]byte
	for _, b := range stream {
		d.Feed([]byte{b})
		got = append(got, drain(t, d)...)
	}
	assert.Equal(t, [][]byte{[]byte("one"), []byte("two")}, got)
}

func TestDecoder_Oversize(t *testing.T) {
	d := NewDecoder(16)
	d.Feed(Encode([]byte("ok")))
	d.Feed(Encode(bytes.Repeat([]byte{1}, 17)))

	body, ok, err := d.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("ok"), body)

	_, ok, err = d.Next()
	require.False(t, ok)
	require.ErrorIs(t, err, ErrFrameTooLarge)

	var fe *FramingError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, int64(3), fe.Offset)
	assert.Equal(t, uint64(17), fe.Length)

	// Sticky.
	d.Feed(Encode([]byte("later")))
	_, _, err = d.Next()
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestDecoder_OversizeBeforeBodyArrives(t *testing.T) {
	d := NewDecoder(DefaultMaxFrameSize)
	d.Feed([]byte{0x80, 0x80, 0x80, 0x40}) // 2^27 = 128 MiB
	_, _, err := d.Next()
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestDecoder_UnboundedMax(t *testing.T) {
	d := NewDecoder(math.MaxUint64)
	d.Feed([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x7F}) // 2^63-1
	_, ok, err := d.Next()
	require.False(t, ok)
	require.ErrorIs(t, err, ErrFrameTooLarge)

	// A large length that fits waits for its body.
	d = NewDecoder(math.MaxUint64)
	d.Feed(binary.AppendUvarint(nil, 1<<40))
	d.Feed([]byte("abc"))
	_, ok, err = d.Next()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDecoder_PrefixOverflow(t *testing.T) {
	d := NewDecoder(0)
	d.Feed(bytes.Repeat([]byte{0xFF}, 9))
	_, ok, err := d.Next()
	require.NoError(t, err, "nine continuation bytes may still terminate")
	require.False(t, ok)

	d.Feed([]byte{0xFF, 0x01})
	_, _, err = d.Next()
	require.ErrorIs(t, err, ErrPrefixOverflow)
}

func TestDecoder_Partial(t *testing.T) {
	enc := Encode([]byte("partial"))
	d := NewDecoder(0)
	d.Feed(enc[:4])
	_, ok, err := d.Next()
	require.NoError(t, err)
	require.False(t, ok)
	assert.Equal(t, 4, d.Buffered())

	d.Feed(enc[4:])
	body, ok, err := d.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("partial"), body)
}

type chunkReader struct {
	chunks [][]byte
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if len(r.chunks[0]) == 0 {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func TestReader_ReadFrame(t *testing.T) {
	stream := Append(Encode([]byte("alpha")), []byte("beta"))
	r := NewReader(&chunkReader{chunks: [][]byte{stream[:2], stream[2:9], stream[9:]}}, 0)

	body, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte("alpha"), body)

	body, err = r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte("beta"), body)

	_, err = r.ReadFrame()
	require.ErrorIs(t, err, io.EOF)
}

func TestReader_UnexpectedEOF(t *testing.T) {
	enc := Encode([]byte("truncated"))
	r := NewReader(bytes.NewReader(enc[:5]), 0)
	_, err := r.ReadFrame()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []byte("w")))
	assert.Equal(t, []byte{0x01, 'w'}, buf.Bytes())
}
