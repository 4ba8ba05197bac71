package wire

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/blockberries/abci/types"
)

// decodeFunc decodes one nested message located at absolute offset base.
type decodeFunc[T any] func(b []byte, base int) (T, error)

// sub decodes the embedded message carried by f.
func sub[T any](f *field, dec decodeFunc[T]) (T, error) {
	var zero T
	b, off, err := f.embedded()
	if err != nil {
		return zero, err
	}
	return dec(b, off)
}

// subPtr is sub for optional messages held by pointer.
func subPtr[T any](f *field, dec decodeFunc[T]) (*T, error) {
	v, err := sub(f, dec)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// put emits v as a nested message.
func put[T any](e *encoder, num protowire.Number, v T, enc func(*encoder, T)) {
	e.message(num, func(inner *encoder) { enc(inner, v) })
}

// putPtr emits v when it is non-nil.
func putPtr[T any](e *encoder, num protowire.Number, v *T, enc func(*encoder, T)) {
	if v != nil {
		put(e, num, *v, enc)
	}
}

func putEach[T any](e *encoder, num protowire.Number, vs []T, enc func(*encoder, T)) {
	for _, v := range vs {
		put(e, num, v, enc)
	}
}

func encodeTimestamp(e *encoder, ts types.Timestamp) {
	e.int64(1, ts.Seconds)
	e.int32(2, ts.Nanos)
}

func decodeTimestamp(b []byte, base int) (ts types.Timestamp, err error) {
	_, err = walk("Timestamp", b, base, func(f *field) (err error) {
		switch f.num {
		case 1:
			ts.Seconds, err = f.int64()
		case 2:
			ts.Nanos, err = f.int32()
		}
		return err
	})
	return ts, err
}

func encodeConsensusParams(e *encoder, p types.ConsensusParams) {
	put(e, 1, p.Block, func(e *encoder, b types.BlockParams) {
		e.int64(1, b.MaxBytes)
		e.int64(2, b.MaxGas)
	})
	put(e, 2, p.Evidence, func(e *encoder, ev types.EvidenceParams) {
		e.int64(1, ev.MaxAge)
	})
	put(e, 3, p.Validator, func(e *encoder, v types.ValidatorParams) {
		for _, t := range v.PubKeyTypes {
			e.mustString(1, t)
		}
	})
}

func decodeConsensusParams(b []byte, base int) (p types.ConsensusParams, err error) {
	_, err = walk("ConsensusParams", b, base, func(f *field) (err error) {
		switch f.num {
		case 1:
			p.Block, err = sub(f, decodeBlockParams)
		case 2:
			p.Evidence, err = sub(f, decodeEvidenceParams)
		case 3:
			p.Validator, err = sub(f, decodeValidatorParams)
		}
		return err
	})
	return p, err
}

func decodeBlockParams(b []byte, base int) (p types.BlockParams, err error) {
	_, err = walk("BlockParams", b, base, func(f *field) (err error) {
		switch f.num {
		case 1:
			p.MaxBytes, err = f.int64()
		case 2:
			p.MaxGas, err = f.int64()
		}
		return err
	})
	return p, err
}

func decodeEvidenceParams(b []byte, base int) (p types.EvidenceParams, err error) {
	_, err = walk("EvidenceParams", b, base, func(f *field) (err error) {
		if f.num == 1 {
			p.MaxAge, err = f.int64()
		}
		return err
	})
	return p, err
}

func decodeValidatorParams(b []byte, base int) (p types.ValidatorParams, err error) {
	_, err = walk("ValidatorParams", b, base, func(f *field) error {
		if f.num != 1 {
			return nil
		}
		s, err := f.string()
		if err != nil {
			return err
		}
		p.PubKeyTypes = append(p.PubKeyTypes, s)
		return nil
	})
	return p, err
}

func encodeHeader(e *encoder, h types.Header) {
	put(e, 1, h.Version, func(e *encoder, v types.Version) {
		e.uint64(1, v.Block)
		e.uint64(2, v.App)
	})
	e.string(2, h.ChainID)
	e.int64(3, h.Height)
	put(e, 4, h.Time, encodeTimestamp)
	e.int64(5, h.NumTxs)
	e.int64(6, h.TotalTxs)
	put(e, 7, h.LastBlockID, encodeBlockID)
	e.bytes(8, h.LastCommitHash)
	e.bytes(9, h.DataHash)
	e.bytes(10, h.ValidatorsHash)
	e.bytes(11, h.NextValidatorsHash)
	e.bytes(12, h.ConsensusHash)
	e.bytes(13, h.AppHash)
	e.bytes(14, h.LastResultsHash)
	e.bytes(15, h.EvidenceHash)
	e.bytes(16, h.ProposerAddress)
}

func decodeHeader(b []byte, base int) (h types.Header, err error) {
	_, err = walk("Header", b, base, func(f *field) (err error) {
		switch f.num {
		case 1:
			h.Version, err = sub(f, decodeVersion)
		case 2:
			h.ChainID, err = f.string()
		case 3:
			h.Height, err = f.int64()
		case 4:
			h.Time, err = sub(f, decodeTimestamp)
		case 5:
			h.NumTxs, err = f.int64()
		case 6:
			h.TotalTxs, err = f.int64()
		case 7:
			h.LastBlockID, err = sub(f, decodeBlockID)
		case 8:
			h.LastCommitHash, err = f.bytes()
		case 9:
			h.DataHash, err = f.bytes()
		case 10:
			h.ValidatorsHash, err = f.bytes()
		case 11:
			h.NextValidatorsHash, err = f.bytes()
		case 12:
			h.ConsensusHash, err = f.bytes()
		case 13:
			h.AppHash, err = f.bytes()
		case 14:
			h.LastResultsHash, err = f.bytes()
		case 15:
			h.EvidenceHash, err = f.bytes()
		case 16:
			h.ProposerAddress, err = f.bytes()
		}
		return err
	})
	return h, err
}

func decodeVersion(b []byte, base int) (v types.Version, err error) {
	_, err = walk("Version", b, base, func(f *field) (err error) {
		switch f.num {
		case 1:
			v.Block, err = f.uint64()
		case 2:
			v.App, err = f.uint64()
		}
		return err
	})
	return v, err
}

func encodeBlockID(e *encoder, id types.BlockID) {
	e.bytes(1, id.Hash)
	put(e, 2, id.PartsHeader, func(e *encoder, p types.PartSetHeader) {
		e.int32(1, p.Total)
		e.bytes(2, p.Hash)
	})
}

func decodeBlockID(b []byte, base int) (id types.BlockID, err error) {
	_, err = walk("BlockID", b, base, func(f *field) (err error) {
		switch f.num {
		case 1:
			id.Hash, err = f.bytes()
		case 2:
			id.PartsHeader, err = sub(f, decodePartSetHeader)
		}
		return err
	})
	return id, err
}

func decodePartSetHeader(b []byte, base int) (p types.PartSetHeader, err error) {
	_, err = walk("PartSetHeader", b, base, func(f *field) (err error) {
		switch f.num {
		case 1:
			p.Total, err = f.int32()
		case 2:
			p.Hash, err = f.bytes()
		}
		return err
	})
	return p, err
}

func encodeLastCommitInfo(e *encoder, lci types.LastCommitInfo) {
	e.int32(1, lci.Round)
	putEach(e, 2, lci.Votes, func(e *encoder, v types.VoteInfo) {
		put(e, 1, v.Validator, encodeValidator)
		e.bool(2, v.SignedLastBlock)
	})
}

func decodeLastCommitInfo(b []byte, base int) (lci types.LastCommitInfo, err error) {
	_, err = walk("LastCommitInfo", b, base, func(f *field) error {
		switch f.num {
		case 1:
			var err error
			lci.Round, err = f.int32()
			return err
		case 2:
			v, err := sub(f, decodeVoteInfo)
			if err != nil {
				return err
			}
			lci.Votes = append(lci.Votes, v)
		}
		return nil
	})
	return lci, err
}

func decodeVoteInfo(b []byte, base int) (v types.VoteInfo, err error) {
	_, err = walk("VoteInfo", b, base, func(f *field) (err error) {
		switch f.num {
		case 1:
			v.Validator, err = sub(f, decodeValidator)
		case 2:
			v.SignedLastBlock, err = f.bool()
		}
		return err
	})
	return v, err
}

// Validator keeps power at field 3; field 2 was retired with the
// embedded public key.
func encodeValidator(e *encoder, v types.Validator) {
	e.bytes(1, v.Address)
	e.int64(3, v.Power)
}

func decodeValidator(b []byte, base int) (v types.Validator, err error) {
	_, err = walk("Validator", b, base, func(f *field) (err error) {
		switch f.num {
		case 1:
			v.Address, err = f.bytes()
		case 3:
			v.Power, err = f.int64()
		}
		return err
	})
	return v, err
}

func encodeValidatorUpdate(e *encoder, u types.ValidatorUpdate) {
	put(e, 1, u.PubKey, func(e *encoder, pk types.PubKey) {
		e.string(1, pk.Type)
		e.bytes(2, pk.Data)
	})
	e.int64(2, u.Power)
}

func decodeValidatorUpdate(b []byte, base int) (u types.ValidatorUpdate, err error) {
	_, err = walk("ValidatorUpdate", b, base, func(f *field) (err error) {
		switch f.num {
		case 1:
			u.PubKey, err = sub(f, decodePubKey)
		case 2:
			u.Power, err = f.int64()
		}
		return err
	})
	return u, err
}

func decodePubKey(b []byte, base int) (pk types.PubKey, err error) {
	_, err = walk("PubKey", b, base, func(f *field) (err error) {
		switch f.num {
		case 1:
			pk.Type, err = f.string()
		case 2:
			pk.Data, err = f.bytes()
		}
		return err
	})
	return pk, err
}

func encodeEvidence(e *encoder, ev types.Evidence) {
	e.string(1, ev.Type)
	put(e, 2, ev.Validator, encodeValidator)
	e.int64(3, ev.Height)
	put(e, 4, ev.Time, encodeTimestamp)
	e.int64(5, ev.TotalVotingPower)
}

func decodeEvidence(b []byte, base int) (ev types.Evidence, err error) {
	_, err = walk("Evidence", b, base, func(f *field) (err error) {
		switch f.num {
		case 1:
			ev.Type, err = f.string()
		case 2:
			ev.Validator, err = sub(f, decodeValidator)
		case 3:
			ev.Height, err = f.int64()
		case 4:
			ev.Time, err = sub(f, decodeTimestamp)
		case 5:
			ev.TotalVotingPower, err = f.int64()
		}
		return err
	})
	return ev, err
}

func encodeEvent(e *encoder, ev types.Event) {
	e.string(1, ev.Type)
	putEach(e, 2, ev.Attributes, func(e *encoder, kv types.KVPair) {
		e.bytes(1, kv.Key)
		e.bytes(2, kv.Value)
	})
}

func decodeEvent(b []byte, base int) (ev types.Event, err error) {
	_, err = walk("Event", b, base, func(f *field) error {
		switch f.num {
		case 1:
			var err error
			ev.Type, err = f.string()
			return err
		case 2:
			kv, err := sub(f, decodeKVPair)
			if err != nil {
				return err
			}
			ev.Attributes = append(ev.Attributes, kv)
		}
		return nil
	})
	return ev, err
}

func decodeKVPair(b []byte, base int) (kv types.KVPair, err error) {
	_, err = walk("KVPair", b, base, func(f *field) (err error) {
		switch f.num {
		case 1:
			kv.Key, err = f.bytes()
		case 2:
			kv.Value, err = f.bytes()
		}
		return err
	})
	return kv, err
}

func encodeProof(e *encoder, p types.Proof) {
	putEach(e, 1, p.Ops, func(e *encoder, op types.ProofOp) {
		e.string(1, op.Type)
		e.bytes(2, op.Key)
		e.bytes(3, op.Data)
	})
}

func decodeProof(b []byte, base int) (p types.Proof, err error) {
	_, err = walk("Proof", b, base, func(f *field) error {
		if f.num != 1 {
			return nil
		}
		op, err := sub(f, decodeProofOp)
		if err != nil {
			return err
		}
		p.Ops = append(p.Ops, op)
		return nil
	})
	return p, err
}

func decodeProofOp(b []byte, base int) (op types.ProofOp, err error) {
	_, err = walk("ProofOp", b, base, func(f *field) (err error) {
		switch f.num {
		case 1:
			op.Type, err = f.string()
		case 2:
			op.Key, err = f.bytes()
		case 3:
			op.Data, err = f.bytes()
		}
		return err
	})
	return op, err
}

// appendEach decodes a repeated message field into dst.
func appendEach[T any](dst *[]T, f *field, dec decodeFunc[T]) error {
	v, err := sub(f, dec)
	if err != nil {
		return err
	}
	*dst = append(*dst, v)
	return nil
}
