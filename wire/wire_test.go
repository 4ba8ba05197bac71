package wire

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/blockberries/abci/types"
)

var params = &types.ConsensusParams{
	Block:     types.BlockParams{MaxBytes: 4096, MaxGas: 1000},
	Evidence:  types.EvidenceParams{MaxAge: 10000},
	Validator: types.ValidatorParams{PubKeyTypes: []string{"ed25519"}},
}

var validators = []types.ValidatorUpdate{
	{PubKey: types.PubKey{Type: "ed25519", Data: []byte{1, 2, 3}}, Power: 10},
}

var events = []types.Event{
	{Type: "transfer", Attributes: []types.KVPair{{Key: []byte("to"), Value: []byte("bob")}}},
}

func sampleRequests() map[types.Kind]types.Request {
	return map[types.Kind]types.Request{
		types.KindEcho:  types.RequestEcho{Message: "hello"},
		types.KindFlush: types.RequestFlush{},
		types.KindInfo:  types.RequestInfo{Version: "0.32.0", BlockVersion: 10, P2PVersion: 7},
		types.KindSetOption: types.RequestSetOption{Key: "serial", Value: "on"},
		types.KindInitChain: types.RequestInitChain{
			Time:            types.Timestamp{Seconds: 1700000000, Nanos: 5},
			ChainID:         "test-chain",
			ConsensusParams: params,
			Validators:      validators,
			AppStateBytes:   []byte(`{}`),
		},
		types.KindQuery: types.RequestQuery{Data: []byte("k"), Path: "/store", Height: 3, Prove: true},
		types.KindBeginBlock: types.RequestBeginBlock{
			Hash: []byte{0xAB},
			Header: types.Header{
				Version: types.Version{Block: 10, App: 1},
				ChainID: "test-chain",
				Height:  2,
				Time:    types.Timestamp{Seconds: 1700000001},
				NumTxs:  1,
				LastBlockID: types.BlockID{
					Hash:        []byte{0x01},
					PartsHeader: types.PartSetHeader{Total: 1, Hash: []byte{0x02}},
				},
				AppHash:         []byte{0, 0, 0, 0, 0, 0, 0, 1},
				ProposerAddress: []byte{0x09},
			},
			LastCommitInfo: types.LastCommitInfo{
				Round: -1,
				Votes: []types.VoteInfo{{Validator: types.Validator{Address: []byte{0x09}, Power: 10}, SignedLastBlock: true}},
			},
			ByzantineValidators: []types.Evidence{{
				Type:             "duplicate/vote",
				Validator:        types.Validator{Address: []byte{0x0A}, Power: 5},
				Height:           1,
				Time:             types.Timestamp{Seconds: 1699999999},
				TotalVotingPower: 15,
			}},
		},
		types.KindCheckTx:   types.RequestCheckTx{Tx: []byte{0x01}, Type: types.CheckTxRecheck},
		types.KindDeliverTx: types.RequestDeliverTx{Tx: []byte{0x00, 0x01}},
		types.KindEndBlock:  types.RequestEndBlock{Height: 2},
		types.KindCommit:    types.RequestCommit{},
	}
}

func sampleResponses() map[types.Kind]types.Response {
	return map[types.Kind]types.Response{
		types.KindEcho:  types.ResponseEcho{Message: "hello"},
		types.KindFlush: types.ResponseFlush{},
		types.KindInfo: types.ResponseInfo{
			Data: `{"hashes":1,"txs":2}`, Version: "1.0", AppVersion: 1,
			LastBlockHeight: 9, LastBlockAppHash: []byte{0x02},
		},
		types.KindSetOption: types.ResponseSetOption{Code: 1, Log: "unknown key", Info: "i"},
		types.KindInitChain: types.ResponseInitChain{ConsensusParams: params, Validators: validators},
		types.KindQuery: types.ResponseQuery{
			Code: 0, Log: "query", Index: -1, Key: []byte("count"), Value: []byte{0, 2},
			Proof:  &types.Proof{Ops: []types.ProofOp{{Type: "iavl", Key: []byte("count"), Data: []byte{0xFF}}}},
			Height: 4, Codespace: "counter",
		},
		types.KindBeginBlock: types.ResponseBeginBlock{Events: events},
		types.KindCheckTx:    types.ResponseCheckTx{Code: 3, Log: "bad count", GasWanted: 1, Codespace: "counter"},
		types.KindDeliverTx: types.ResponseDeliverTx{
			Data: []byte{0x01}, Log: "ok", Info: "i", GasWanted: 2, GasUsed: 1, Events: events,
		},
		types.KindEndBlock: types.ResponseEndBlock{
			ValidatorUpdates: validators, ConsensusParamUpdates: params, Events: events,
		},
		types.KindCommit: types.ResponseCommit{Data: []byte{0, 0, 0, 0, 0, 0, 0, 2}},
	}
}

func TestRequest_RoundTripEveryKind(t *testing.T) {
	samples := sampleRequests()
	for _, k := range types.Kinds() {
		req, ok := samples[k]
		require.True(t, ok, "no sample request for %s", k)

		b, err := EncodeRequest(req)
		require.NoError(t, err, k.String())
		got, err := DecodeRequest(b)
		require.NoError(t, err, k.String())
		assert.Equal(t, req, got, k.String())
	}
}

func TestResponse_RoundTripEveryKind(t *testing.T) {
	samples := sampleResponses()
	for _, k := range types.Kinds() {
		resp, ok := samples[k]
		require.True(t, ok, "no sample response for %s", k)

		b, err := EncodeResponse(resp)
		require.NoError(t, err, k.String())
		got, err := DecodeResponse(b)
		require.NoError(t, err, k.String())
		assert.Equal(t, resp, got, k.String())
	}
}

func TestEncodeRequest_Bytes(t *testing.T) {
	b, err := EncodeRequest(types.RequestEcho{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x12, 0x04, 0x0a, 0x02, 'h', 'i'}, b)

	b, err = EncodeRequest(types.RequestDeliverTx{Tx: []byte{0x07}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x9a, 0x01, 0x03, 0x0a, 0x01, 0x07}, b)

	b, err = EncodeResponse(types.ResponseDeliverTx{})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x52, 0x00}, b)
}

func TestEncode_RequiredFieldsEmittedWhenZero(t *testing.T) {
	b, err := EncodeRequest(types.RequestEndBlock{})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x5a, 0x02, 0x08, 0x00}, b)

	got, err := DecodeRequest(b)
	require.NoError(t, err)
	assert.Equal(t, types.RequestEndBlock{}, got)

	for _, req := range []types.Request{
		types.RequestSetOption{},
		types.RequestInitChain{},
		types.RequestBeginBlock{},
		types.RequestCheckTx{},
		types.RequestDeliverTx{},
	} {
		b, err := EncodeRequest(req)
		require.NoError(t, err)
		_, err = DecodeRequest(b)
		assert.NoError(t, err, "%T", req)
	}
}

func TestDecode_SkipsUnknownFields(t *testing.T) {
	var body []byte
	body = protowire.AppendTag(body, 1, protowire.BytesType)
	body = protowire.AppendBytes(body, []byte{0x05})
	body = protowire.AppendTag(body, 99, protowire.VarintType)
	body = protowire.AppendVarint(body, 12345)
	body = protowire.AppendTag(body, 100, protowire.Fixed64Type)
	body = protowire.AppendFixed64(body, 1)
	body = protowire.AppendTag(body, 101, protowire.StartGroupType)
	body = protowire.AppendTag(body, 1, protowire.VarintType)
	body = protowire.AppendVarint(body, 1)
	body = protowire.AppendTag(body, 101, protowire.EndGroupType)

	env := protowire.AppendTag(nil, reqDeliverTx, protowire.BytesType)
	env = protowire.AppendBytes(env, body)

	got, err := DecodeRequest(env)
	require.NoError(t, err)
	assert.Equal(t, types.RequestDeliverTx{Tx: []byte{0x05}}, got)
}

func requireMalformed(t *testing.T, err error, offset int, cause error) {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrMalformed)
	var me *MalformedError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, offset, me.Offset, me.Error())
	if cause != nil {
		assert.ErrorIs(t, err, cause)
	}
}

func TestDecode_MissingRequired(t *testing.T) {
	// EndBlock with an empty body: the height is missing at the end of the body.
	_, err := DecodeRequest([]byte{0x5a, 0x00})
	requireMalformed(t, err, 2, errMissingRequired)

	// DeliverTx carrying only an unknown field.
	_, err = DecodeRequest([]byte{0x9a, 0x01, 0x02, 0x10, 0x01})
	requireMalformed(t, err, 5, errMissingRequired)
}

func TestDecode_Envelope(t *testing.T) {
	echo, err := EncodeRequest(types.RequestEcho{Message: "a"})
	require.NoError(t, err)

	_, err = DecodeRequest(nil)
	requireMalformed(t, err, 0, errNoVariant)

	unknown := protowire.AppendTag(nil, 30, protowire.BytesType)
	unknown = protowire.AppendBytes(unknown, nil)
	_, err = DecodeRequest(unknown)
	requireMalformed(t, err, 0, errUnknownVariant)

	_, err = DecodeRequest(append(append([]byte{}, echo...), echo...))
	requireMalformed(t, err, len(echo), errExtraVariant)

	// Response envelopes reject the request-side DeliverTx number.
	_, err = DecodeResponse([]byte{0x9a, 0x01, 0x00})
	requireMalformed(t, err, 0, errUnknownVariant)
}

func TestDecode_WireType(t *testing.T) {
	// Echo variant sent as a varint.
	_, err := DecodeRequest([]byte{0x10, 0x01})
	requireMalformed(t, err, 0, errWireType)

	// Query height sent as bytes.
	_, err = DecodeRequest([]byte{0x3a, 0x03, 0x1a, 0x01, 0x00})
	requireMalformed(t, err, 2, errWireType)
}

func TestDecode_Truncated(t *testing.T) {
	b, err := EncodeRequest(types.RequestEcho{Message: "hello"})
	require.NoError(t, err)
	for n := 1; n < len(b); n++ {
		_, err := DecodeRequest(b[:n])
		assert.ErrorIs(t, err, ErrMalformed, "truncated to %d bytes", n)
	}
}

func TestDecode_InvalidUTF8(t *testing.T) {
	_, err := DecodeRequest([]byte{0x12, 0x03, 0x0a, 0x01, 0xFF})
	requireMalformed(t, err, 4, errInvalidUTF8)

	_, err = DecodeResponse([]byte{0x12, 0x03, 0x0a, 0x01, 0xC3})
	requireMalformed(t, err, 4, errInvalidUTF8)
}

func TestDecode_NestedOffsets(t *testing.T) {
	req := types.RequestBeginBlock{Header: types.Header{ChainID: "c"}}
	b, err := EncodeRequest(req)
	require.NoError(t, err)

	// Corrupt the chain id byte inside the header.
	i := len(b) - 1
	for ; i >= 0 && b[i] != 'c'; i-- {
	}
	require.GreaterOrEqual(t, i, 0)
	b[i] = 0xFF
	_, err = DecodeRequest(b)
	requireMalformed(t, err, i, errInvalidUTF8)
}

func TestEncode_RejectsPointers(t *testing.T) {
	_, err := EncodeRequest(&types.RequestEcho{})
	assert.Error(t, err)
	_, err = EncodeResponse(nil)
	assert.Error(t, err)
}
