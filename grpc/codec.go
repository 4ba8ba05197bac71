// Package abcigrpc provides a gRPC transport for ABCI applications,
// using cramberry for deterministic binary serialization.
//
// No protobuf code generation is required. Request and response
// values from abci/types are serialized directly via cramberry struct
// tags. The socket protocol remains the canonical transport; this one
// serves engines that speak gRPC.
package abcigrpc

import (
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/mem"
)

const codecName = "cramberry"

// Codec implements grpc/encoding.CodecV2 with cramberry. Messages
// are small, so buffers are materialized into one slice rather than
// decoded in place.
type Codec struct{}

func (Codec) Marshal(v any) (mem.BufferSlice, error) {
	data, err := cramberry.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("abcigrpc: marshal %T: %w", v, err)
	}
	return mem.BufferSlice{mem.SliceBuffer(data)}, nil
}

func (Codec) Unmarshal(data mem.BufferSlice, v any) error {
	if err := cramberry.Unmarshal(data.Materialize(), v); err != nil {
		return fmt.Errorf("abcigrpc: unmarshal %T: %w", v, err)
	}
	return nil
}

func (Codec) Name() string { return codecName }

func init() {
	encoding.RegisterCodecV2(Codec{})
}
