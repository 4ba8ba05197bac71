package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/blockberries/abci/types"
)

// Request envelope field numbers.
const (
	reqEcho       protowire.Number = 2
	reqFlush      protowire.Number = 3
	reqInfo       protowire.Number = 4
	reqSetOption  protowire.Number = 5
	reqInitChain  protowire.Number = 6
	reqQuery      protowire.Number = 7
	reqBeginBlock protowire.Number = 8
	reqCheckTx    protowire.Number = 9
	reqDeliverTx  protowire.Number = 19
	reqEndBlock   protowire.Number = 11
	reqCommit     protowire.Number = 12
)

// EncodeRequest serializes req into a Request envelope.
func EncodeRequest(req types.Request) ([]byte, error) {
	var e encoder
	switch r := req.(type) {
	case types.RequestEcho:
		e.message(reqEcho, func(e *encoder) {
			e.string(1, r.Message)
		})
	case types.RequestFlush:
		e.message(reqFlush, func(*encoder) {})
	case types.RequestInfo:
		e.message(reqInfo, func(e *encoder) {
			e.string(1, r.Version)
			e.uint64(2, r.BlockVersion)
			e.uint64(3, r.P2PVersion)
		})
	case types.RequestSetOption:
		e.message(reqSetOption, func(e *encoder) {
			e.mustString(1, r.Key)
			e.string(2, r.Value)
		})
	case types.RequestInitChain:
		e.message(reqInitChain, func(e *encoder) {
			put(e, 1, r.Time, encodeTimestamp)
			e.mustString(2, r.ChainID)
			putPtr(e, 3, r.ConsensusParams, encodeConsensusParams)
			putEach(e, 4, r.Validators, encodeValidatorUpdate)
			e.bytes(5, r.AppStateBytes)
		})
	case types.RequestQuery:
		e.message(reqQuery, func(e *encoder) {
			e.bytes(1, r.Data)
			e.string(2, r.Path)
			e.int64(3, r.Height)
			e.bool(4, r.Prove)
		})
	case types.RequestBeginBlock:
		e.message(reqBeginBlock, func(e *encoder) {
			e.bytes(1, r.Hash)
			put(e, 2, r.Header, encodeHeader)
			put(e, 3, r.LastCommitInfo, encodeLastCommitInfo)
			putEach(e, 4, r.ByzantineValidators, encodeEvidence)
		})
	case types.RequestCheckTx:
		e.message(reqCheckTx, func(e *encoder) {
			e.mustBytes(1, r.Tx)
			e.int32(2, int32(r.Type))
		})
	case types.RequestDeliverTx:
		e.message(reqDeliverTx, func(e *encoder) {
			e.mustBytes(1, r.Tx)
		})
	case types.RequestEndBlock:
		e.message(reqEndBlock, func(e *encoder) {
			e.mustUint64(1, uint64(r.Height))
		})
	case types.RequestCommit:
		e.message(reqCommit, func(*encoder) {})
	default:
		return nil, fmt.Errorf("wire: cannot encode request %T", req)
	}
	return e.b, nil
}

var requestDecoders = map[protowire.Number]decodeFunc[types.Request]{
	reqEcho: func(b []byte, base int) (types.Request, error) {
		var r types.RequestEcho
		_, err := walk("RequestEcho", b, base, func(f *field) (err error) {
			if f.num == 1 {
				r.Message, err = f.string()
			}
			return err
		})
		return r, err
	},
	reqFlush: func(b []byte, base int) (types.Request, error) {
		_, err := walk("RequestFlush", b, base, skip)
		return types.RequestFlush{}, err
	},
	reqInfo: func(b []byte, base int) (types.Request, error) {
		var r types.RequestInfo
		_, err := walk("RequestInfo", b, base, func(f *field) (err error) {
			switch f.num {
			case 1:
				r.Version, err = f.string()
			case 2:
				r.BlockVersion, err = f.uint64()
			case 3:
				r.P2PVersion, err = f.uint64()
			}
			return err
		})
		return r, err
	},
	reqSetOption: func(b []byte, base int) (types.Request, error) {
		const name = "RequestSetOption"
		var r types.RequestSetOption
		seen, err := walk(name, b, base, func(f *field) (err error) {
			switch f.num {
			case 1:
				r.Key, err = f.string()
			case 2:
				r.Value, err = f.string()
			}
			return err
		})
		if err == nil {
			err = requireFields(name, seen, base+len(b), 1)
		}
		return r, err
	},
	reqInitChain: func(b []byte, base int) (types.Request, error) {
		const name = "RequestInitChain"
		var r types.RequestInitChain
		seen, err := walk(name, b, base, func(f *field) (err error) {
			switch f.num {
			case 1:
				r.Time, err = sub(f, decodeTimestamp)
			case 2:
				r.ChainID, err = f.string()
			case 3:
				r.ConsensusParams, err = subPtr(f, decodeConsensusParams)
			case 4:
				err = appendEach(&r.Validators, f, decodeValidatorUpdate)
			case 5:
				r.AppStateBytes, err = f.bytes()
			}
			return err
		})
		if err == nil {
			err = requireFields(name, seen, base+len(b), 1, 2)
		}
		return r, err
	},
	reqQuery: func(b []byte, base int) (types.Request, error) {
		var r types.RequestQuery
		_, err := walk("RequestQuery", b, base, func(f *field) (err error) {
			switch f.num {
			case 1:
				r.Data, err = f.bytes()
			case 2:
				r.Path, err = f.string()
			case 3:
				r.Height, err = f.int64()
			case 4:
				r.Prove, err = f.bool()
			}
			return err
		})
		return r, err
	},
	reqBeginBlock: func(b []byte, base int) (types.Request, error) {
		const name = "RequestBeginBlock"
		var r types.RequestBeginBlock
		seen, err := walk(name, b, base, func(f *field) (err error) {
			switch f.num {
			case 1:
				r.Hash, err = f.bytes()
			case 2:
				r.Header, err = sub(f, decodeHeader)
			case 3:
				r.LastCommitInfo, err = sub(f, decodeLastCommitInfo)
			case 4:
				err = appendEach(&r.ByzantineValidators, f, decodeEvidence)
			}
			return err
		})
		if err == nil {
			err = requireFields(name, seen, base+len(b), 2, 3)
		}
		return r, err
	},
	reqCheckTx: func(b []byte, base int) (types.Request, error) {
		const name = "RequestCheckTx"
		var r types.RequestCheckTx
		seen, err := walk(name, b, base, func(f *field) error {
			switch f.num {
			case 1:
				tx, err := f.bytes()
				r.Tx = tx
				return err
			case 2:
				t, err := f.int32()
				r.Type = types.CheckTxType(t)
				return err
			}
			return nil
		})
		if err == nil {
			err = requireFields(name, seen, base+len(b), 1)
		}
		return r, err
	},
	reqDeliverTx: func(b []byte, base int) (types.Request, error) {
		const name = "RequestDeliverTx"
		var r types.RequestDeliverTx
		seen, err := walk(name, b, base, func(f *field) (err error) {
			if f.num == 1 {
				r.Tx, err = f.bytes()
			}
			return err
		})
		if err == nil {
			err = requireFields(name, seen, base+len(b), 1)
		}
		return r, err
	},
	reqEndBlock: func(b []byte, base int) (types.Request, error) {
		const name = "RequestEndBlock"
		var r types.RequestEndBlock
		seen, err := walk(name, b, base, func(f *field) (err error) {
			if f.num == 1 {
				r.Height, err = f.int64()
			}
			return err
		})
		if err == nil {
			err = requireFields(name, seen, base+len(b), 1)
		}
		return r, err
	},
	reqCommit: func(b []byte, base int) (types.Request, error) {
		_, err := walk("RequestCommit", b, base, skip)
		return types.RequestCommit{}, err
	},
}

// DecodeRequest parses a Request envelope from a frame body. Every
// failure is a *MalformedError.
func DecodeRequest(body []byte) (types.Request, error) {
	var req types.Request
	err := envelope("Request", body, func(f *field) error {
		dec, ok := requestDecoders[f.num]
		if !ok {
			return malformed("Request", f.off, fmt.Errorf("%w %d", errUnknownVariant, f.num))
		}
		if req != nil {
			return malformed("Request", f.off, errExtraVariant)
		}
		r, err := sub(f, dec)
		if err != nil {
			return err
		}
		req = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

func skip(*field) error { return nil }

// envelope walks the top-level oneof and fails on an empty body.
func envelope(name string, body []byte, fn func(*field) error) error {
	seen, err := walk(name, body, 0, fn)
	if err != nil {
		return err
	}
	if seen == 0 {
		return malformed(name, 0, errNoVariant)
	}
	return nil
}
