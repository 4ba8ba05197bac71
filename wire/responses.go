package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/blockberries/abci/types"
)

// Response envelope field numbers. They mirror the request envelope
// except for DeliverTx.
const (
	respEcho       protowire.Number = 2
	respFlush      protowire.Number = 3
	respInfo       protowire.Number = 4
	respSetOption  protowire.Number = 5
	respInitChain  protowire.Number = 6
	respQuery      protowire.Number = 7
	respBeginBlock protowire.Number = 8
	respCheckTx    protowire.Number = 9
	respDeliverTx  protowire.Number = 10
	respEndBlock   protowire.Number = 11
	respCommit     protowire.Number = 12
)

// EncodeResponse serializes resp into a Response envelope.
func EncodeResponse(resp types.Response) ([]byte, error) {
	var e encoder
	switch r := resp.(type) {
	case types.ResponseEcho:
		e.message(respEcho, func(e *encoder) {
			e.string(1, r.Message)
		})
	case types.ResponseFlush:
		e.message(respFlush, func(*encoder) {})
	case types.ResponseInfo:
		e.message(respInfo, func(e *encoder) {
			e.string(1, r.Data)
			e.string(2, r.Version)
			e.uint64(3, r.AppVersion)
			e.int64(4, r.LastBlockHeight)
			e.bytes(5, r.LastBlockAppHash)
		})
	case types.ResponseSetOption:
		e.message(respSetOption, func(e *encoder) {
			e.uint64(1, uint64(r.Code))
			e.string(3, r.Log)
			e.string(4, r.Info)
		})
	case types.ResponseInitChain:
		e.message(respInitChain, func(e *encoder) {
			putPtr(e, 1, r.ConsensusParams, encodeConsensusParams)
			putEach(e, 2, r.Validators, encodeValidatorUpdate)
		})
	case types.ResponseQuery:
		e.message(respQuery, func(e *encoder) {
			e.uint64(1, uint64(r.Code))
			e.string(3, r.Log)
			e.string(4, r.Info)
			e.int64(5, r.Index)
			e.bytes(6, r.Key)
			e.bytes(7, r.Value)
			putPtr(e, 8, r.Proof, encodeProof)
			e.int64(9, r.Height)
			e.string(10, r.Codespace)
		})
	case types.ResponseBeginBlock:
		e.message(respBeginBlock, func(e *encoder) {
			putEach(e, 1, r.Events, encodeEvent)
		})
	case types.ResponseCheckTx:
		e.message(respCheckTx, func(e *encoder) {
			encodeTxResult(e, txResult(r))
		})
	case types.ResponseDeliverTx:
		e.message(respDeliverTx, func(e *encoder) {
			encodeTxResult(e, txResult(r))
		})
	case types.ResponseEndBlock:
		e.message(respEndBlock, func(e *encoder) {
			putEach(e, 1, r.ValidatorUpdates, encodeValidatorUpdate)
			putPtr(e, 2, r.ConsensusParamUpdates, encodeConsensusParams)
			putEach(e, 3, r.Events, encodeEvent)
		})
	case types.ResponseCommit:
		e.message(respCommit, func(e *encoder) {
			e.uint64(1, uint64(r.Code))
			e.bytes(2, r.Data)
		})
	default:
		return nil, fmt.Errorf("wire: cannot encode response %T", resp)
	}
	return e.b, nil
}

// txResult is the shared layout of CheckTx and DeliverTx results.
type txResult struct {
	Code      uint32
	Data      []byte
	Log       string
	Info      string
	GasWanted int64
	GasUsed   int64
	Events    []types.Event
	Codespace string
}

func encodeTxResult(e *encoder, r txResult) {
	e.uint64(1, uint64(r.Code))
	e.bytes(2, r.Data)
	e.string(3, r.Log)
	e.string(4, r.Info)
	e.int64(5, r.GasWanted)
	e.int64(6, r.GasUsed)
	putEach(e, 7, r.Events, encodeEvent)
	e.string(8, r.Codespace)
}

func decodeTxResult(name string) decodeFunc[txResult] {
	return func(b []byte, base int) (r txResult, err error) {
		_, err = walk(name, b, base, func(f *field) (err error) {
			switch f.num {
			case 1:
				r.Code, err = f.uint32()
			case 2:
				r.Data, err = f.bytes()
			case 3:
				r.Log, err = f.string()
			case 4:
				r.Info, err = f.string()
			case 5:
				r.GasWanted, err = f.int64()
			case 6:
				r.GasUsed, err = f.int64()
			case 7:
				err = appendEach(&r.Events, f, decodeEvent)
			case 8:
				r.Codespace, err = f.string()
			}
			return err
		})
		return r, err
	}
}

var (
	decodeCheckTxResult   = decodeTxResult("ResponseCheckTx")
	decodeDeliverTxResult = decodeTxResult("ResponseDeliverTx")
)

var responseDecoders = map[protowire.Number]decodeFunc[types.Response]{
	respEcho: func(b []byte, base int) (types.Response, error) {
		var r types.ResponseEcho
		_, err := walk("ResponseEcho", b, base, func(f *field) (err error) {
			if f.num == 1 {
				r.Message, err = f.string()
			}
			return err
		})
		return r, err
	},
	respFlush: func(b []byte, base int) (types.Response, error) {
		_, err := walk("ResponseFlush", b, base, skip)
		return types.ResponseFlush{}, err
	},
	respInfo: func(b []byte, base int) (types.Response, error) {
		var r types.ResponseInfo
		_, err := walk("ResponseInfo", b, base, func(f *field) (err error) {
			switch f.num {
			case 1:
				r.Data, err = f.string()
			case 2:
				r.Version, err = f.string()
			case 3:
				r.AppVersion, err = f.uint64()
			case 4:
				r.LastBlockHeight, err = f.int64()
			case 5:
				r.LastBlockAppHash, err = f.bytes()
			}
			return err
		})
		return r, err
	},
	respSetOption: func(b []byte, base int) (types.Response, error) {
		var r types.ResponseSetOption
		_, err := walk("ResponseSetOption", b, base, func(f *field) (err error) {
			switch f.num {
			case 1:
				r.Code, err = f.uint32()
			case 3:
				r.Log, err = f.string()
			case 4:
				r.Info, err = f.string()
			}
			return err
		})
		return r, err
	},
	respInitChain: func(b []byte, base int) (types.Response, error) {
		var r types.ResponseInitChain
		_, err := walk("ResponseInitChain", b, base, func(f *field) (err error) {
			switch f.num {
			case 1:
				r.ConsensusParams, err = subPtr(f, decodeConsensusParams)
			case 2:
				err = appendEach(&r.Validators, f, decodeValidatorUpdate)
			}
			return err
		})
		return r, err
	},
	respQuery: func(b []byte, base int) (types.Response, error) {
		var r types.ResponseQuery
		_, err := walk("ResponseQuery", b, base, func(f *field) (err error) {
			switch f.num {
			case 1:
				r.Code, err = f.uint32()
			case 3:
				r.Log, err = f.string()
			case 4:
				r.Info, err = f.string()
			case 5:
				r.Index, err = f.int64()
			case 6:
				r.Key, err = f.bytes()
			case 7:
				r.Value, err = f.bytes()
			case 8:
				r.Proof, err = subPtr(f, decodeProof)
			case 9:
				r.Height, err = f.int64()
			case 10:
				r.Codespace, err = f.string()
			}
			return err
		})
		return r, err
	},
	respBeginBlock: func(b []byte, base int) (types.Response, error) {
		var r types.ResponseBeginBlock
		_, err := walk("ResponseBeginBlock", b, base, func(f *field) error {
			if f.num == 1 {
				return appendEach(&r.Events, f, decodeEvent)
			}
			return nil
		})
		return r, err
	},
	respCheckTx: func(b []byte, base int) (types.Response, error) {
		r, err := decodeCheckTxResult(b, base)
		return types.ResponseCheckTx(r), err
	},
	respDeliverTx: func(b []byte, base int) (types.Response, error) {
		r, err := decodeDeliverTxResult(b, base)
		return types.ResponseDeliverTx(r), err
	},
	respEndBlock: func(b []byte, base int) (types.Response, error) {
		var r types.ResponseEndBlock
		_, err := walk("ResponseEndBlock", b, base, func(f *field) (err error) {
			switch f.num {
			case 1:
				err = appendEach(&r.ValidatorUpdates, f, decodeValidatorUpdate)
			case 2:
				r.ConsensusParamUpdates, err = subPtr(f, decodeConsensusParams)
			case 3:
				err = appendEach(&r.Events, f, decodeEvent)
			}
			return err
		})
		return r, err
	},
	respCommit: func(b []byte, base int) (types.Response, error) {
		var r types.ResponseCommit
		_, err := walk("ResponseCommit", b, base, func(f *field) (err error) {
			switch f.num {
			case 1:
				r.Code, err = f.uint32()
			case 2:
				r.Data, err = f.bytes()
			}
			return err
		})
		return r, err
	},
}

// DecodeResponse parses a Response envelope from a frame body.
func DecodeResponse(body []byte) (types.Response, error) {
	var resp types.Response
	err := envelope("Response", body, func(f *field) error {
		dec, ok := responseDecoders[f.num]
		if !ok {
			return malformed("Response", f.off, fmt.Errorf("%w %d", errUnknownVariant, f.num))
		}
		if resp != nil {
			return malformed("Response", f.off, errExtraVariant)
		}
		r, err := sub(f, dec)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
