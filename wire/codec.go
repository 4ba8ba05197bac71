// Package wire encodes and decodes Request and Response envelopes.
//
// The encoding is protobuf-compatible tagged fields following the
// classic ABCI schema, so any protobuf peer speaking that schema
// interoperates. Field numbers are the version contract: decoders
// skip fields they do not know, and encoders never reuse a number.
package wire

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed is matched by every *MalformedError.
var ErrMalformed = errors.New("malformed message")

// MalformedError reports bytes that do not match the schema of the
// claimed variant. Offset is relative to the start of the frame body.
type MalformedError struct {
	Message string
	Offset  int
	Err     error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed %s at offset %d: %v", e.Message, e.Offset, e.Err)
}

func (e *MalformedError) Unwrap() []error { return []error{ErrMalformed, e.Err} }

var (
	errNoVariant       = errors.New("envelope carries no variant")
	errExtraVariant    = errors.New("envelope carries more than one variant")
	errUnknownVariant  = errors.New("unrecognized variant tag")
	errWireType        = errors.New("unexpected wire type")
	errInvalidUTF8     = errors.New("string field is not valid UTF-8")
	errMissingRequired = errors.New("missing required field")
)

func malformed(msg string, off int, err error) *MalformedError {
	return &MalformedError{Message: msg, Offset: off, Err: err}
}

// field is one decoded tag/value pair.
type field struct {
	msg string
	num protowire.Number
	typ protowire.Type
	off int    // absolute offset of the tag
	val uint64 // varint and fixed values
	raw []byte // length-delimited payload
	pos int    // absolute offset of raw
}

func (f *field) want(t protowire.Type) error {
	if f.typ != t {
		return malformed(f.msg, f.off, fmt.Errorf("%w: field %d has type %d, want %d", errWireType, f.num, f.typ, t))
	}
	return nil
}

func (f *field) uint64() (uint64, error) {
	if err := f.want(protowire.VarintType); err != nil {
		return 0, err
	}
	return f.val, nil
}

func (f *field) int64() (int64, error) {
	v, err := f.uint64()
	return int64(v), err
}

func (f *field) int32() (int32, error) {
	v, err := f.uint64()
	return int32(v), err
}

func (f *field) uint32() (uint32, error) {
	v, err := f.uint64()
	return uint32(v), err
}

func (f *field) bool() (bool, error) {
	v, err := f.uint64()
	return v != 0, err
}

// bytes returns a copy of the payload; an empty payload yields nil.
func (f *field) bytes() ([]byte, error) {
	if err := f.want(protowire.BytesType); err != nil {
		return nil, err
	}
	if len(f.raw) == 0 {
		return nil, nil
	}
	return append([]byte(nil), f.raw...), nil
}

func (f *field) string() (string, error) {
	if err := f.want(protowire.BytesType); err != nil {
		return "", err
	}
	if !utf8.Valid(f.raw) {
		return "", malformed(f.msg, f.pos, fmt.Errorf("%w: field %d", errInvalidUTF8, f.num))
	}
	return string(f.raw), nil
}

// embedded returns the payload of a nested message and its offset.
func (f *field) embedded() ([]byte, int, error) {
	if err := f.want(protowire.BytesType); err != nil {
		return nil, 0, err
	}
	return f.raw, f.pos, nil
}

// fieldSet records which field numbers were present.
type fieldSet uint64

func (s fieldSet) has(n protowire.Number) bool { return n < 64 && s&(1<<n) != 0 }

// walk iterates over the fields of one message body located at
// absolute offset base. Groups are skipped as unknown fields.
func walk(msg string, b []byte, base int, fn func(*field) error) (fieldSet, error) {
	var seen fieldSet
	for pos := 0; pos < len(b); {
		num, typ, n := protowire.ConsumeTag(b[pos:])
		if n < 0 {
			return seen, malformed(msg, base+pos, protowire.ParseError(n))
		}
		f := field{msg: msg, num: num, typ: typ, off: base + pos}
		pos += n

		switch typ {
		case protowire.VarintType:
			f.val, n = protowire.ConsumeVarint(b[pos:])
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b[pos:])
			f.val = uint64(v)
		case protowire.Fixed64Type:
			f.val, n = protowire.ConsumeFixed64(b[pos:])
		case protowire.BytesType:
			f.raw, n = protowire.ConsumeBytes(b[pos:])
			if n >= 0 {
				f.pos = base + pos + n - len(f.raw)
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b[pos:])
			if n < 0 {
				return seen, malformed(msg, base+pos, protowire.ParseError(n))
			}
			pos += n
			continue
		}
		if n < 0 {
			return seen, malformed(msg, base+pos, protowire.ParseError(n))
		}
		pos += n

		if num < 64 {
			seen |= 1 << num
		}
		if err := fn(&f); err != nil {
			return seen, err
		}
	}
	return seen, nil
}

// requireFields fails when any of nums is absent. end is the absolute
// offset just past the message.
func requireFields(msg string, seen fieldSet, end int, nums ...protowire.Number) error {
	for _, n := range nums {
		if !seen.has(n) {
			return malformed(msg, end, fmt.Errorf("%w %d", errMissingRequired, n))
		}
	}
	return nil
}

// encoder appends tagged fields. Optional scalar fields equal to
// their zero value are omitted; the must* variants always emit.
type encoder struct {
	b []byte
}

func (e *encoder) mustUint64(num protowire.Number, v uint64) {
	e.b = protowire.AppendTag(e.b, num, protowire.VarintType)
	e.b = protowire.AppendVarint(e.b, v)
}

func (e *encoder) uint64(num protowire.Number, v uint64) {
	if v != 0 {
		e.mustUint64(num, v)
	}
}

func (e *encoder) int64(num protowire.Number, v int64) { e.uint64(num, uint64(v)) }

// int32 sign-extends, as protobuf does for negative int32 values.
func (e *encoder) int32(num protowire.Number, v int32) { e.uint64(num, uint64(int64(v))) }

func (e *encoder) bool(num protowire.Number, v bool) {
	if v {
		e.mustUint64(num, 1)
	}
}

func (e *encoder) mustBytes(num protowire.Number, v []byte) {
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendBytes(e.b, v)
}

func (e *encoder) bytes(num protowire.Number, v []byte) {
	if len(v) > 0 {
		e.mustBytes(num, v)
	}
}

func (e *encoder) mustString(num protowire.Number, v string) {
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendString(e.b, v)
}

func (e *encoder) string(num protowire.Number, v string) {
	if v != "" {
		e.mustString(num, v)
	}
}

// message emits a nested message, even when empty.
func (e *encoder) message(num protowire.Number, fn func(*encoder)) {
	var inner encoder
	fn(&inner)
	e.mustBytes(num, inner.b)
}
