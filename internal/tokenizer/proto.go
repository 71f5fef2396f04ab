package tokenizer

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// PieceType mirrors sentencepiece.ModelProto.SentencePiece.Type.
type PieceType int

const (
	Normal      PieceType = 1
	Unknown     PieceType = 2
	Control     PieceType = 3
	UserDefined PieceType = 4
	Unused      PieceType = 5
	Byte        PieceType = 6
)

// Model types from TrainerSpec.ModelType.
const (
	ModelUnigram = 1
	ModelBPE     = 2
)

// Piece is one vocabulary entry of a SentencePiece model.
type Piece struct {
	Piece string
	Score float32
	Type  PieceType
}

// ModelProto holds the subset of a serialized SentencePiece model the
// tokenizer needs. Unknown fields are skipped on read and dropped on write.
type ModelProto struct {
	Pieces []Piece

	ModelType int
	UnkID     int
	BOSID     int
	EOSID     int
	PadID     int

	NormalizerName         string
	PrecompiledCharsmap    []byte
	AddDummyPrefix         bool
	RemoveExtraWhitespaces bool
	EscapeWhitespaces      bool
}

// Field numbers from sentencepiece_model.proto.
const (
	fieldPieces         protowire.Number = 1
	fieldTrainerSpec    protowire.Number = 2
	fieldNormalizerSpec protowire.Number = 3

	fieldPiece      protowire.Number = 1
	fieldPieceScore protowire.Number = 2
	fieldPieceType  protowire.Number = 3

	fieldModelType protowire.Number = 3
	fieldUnkID     protowire.Number = 40
	fieldBOSID     protowire.Number = 41
	fieldEOSID     protowire.Number = 42
	fieldPadID     protowire.Number = 43

	fieldNormName      protowire.Number = 1
	fieldCharsmap      protowire.Number = 2
	fieldDummyPrefix   protowire.Number = 3
	fieldRemoveExtraWS protowire.Number = 4
	fieldEscapeWS      protowire.Number = 5
)

type field struct {
	num     protowire.Number
	typ     protowire.Type
	varint  uint64
	fixed32 uint32
	bytes   []byte
}

func walk(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			f.fixed32, n = protowire.ConsumeFixed32(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// int32 proto fields carry negative values as sign-extended varints.
func varintInt(v uint64) int { return int(int32(v)) }

// ParseModelProto decodes a serialized spiece.model.
func ParseModelProto(b []byte) (*ModelProto, error) {
	mp := &ModelProto{
		ModelType:              ModelUnigram,
		UnkID:                  0,
		BOSID:                  1,
		EOSID:                  2,
		PadID:                  -1,
		AddDummyPrefix:         true,
		RemoveExtraWhitespaces: true,
		EscapeWhitespaces:      true,
	}
	err := walk(b, func(f field) error {
		switch {
		case f.num == fieldPieces && f.typ == protowire.BytesType:
			p, err := parsePiece(f.bytes)
			if err != nil {
				return err
			}
			mp.Pieces = append(mp.Pieces, p)
		case f.num == fieldTrainerSpec && f.typ == protowire.BytesType:
			return walk(f.bytes, func(f field) error {
				if f.typ != protowire.VarintType {
					return nil
				}
				switch f.num {
				case fieldModelType:
					mp.ModelType = varintInt(f.varint)
				case fieldUnkID:
					mp.UnkID = varintInt(f.varint)
				case fieldBOSID:
					mp.BOSID = varintInt(f.varint)
				case fieldEOSID:
					mp.EOSID = varintInt(f.varint)
				case fieldPadID:
					mp.PadID = varintInt(f.varint)
				}
				return nil
			})
		case f.num == fieldNormalizerSpec && f.typ == protowire.BytesType:
			return walk(f.bytes, func(f field) error {
				switch f.num {
				case fieldNormName:
					mp.NormalizerName = string(f.bytes)
				case fieldCharsmap:
					mp.PrecompiledCharsmap = append([]byte(nil), f.bytes...)
				case fieldDummyPrefix:
					mp.AddDummyPrefix = f.varint != 0
				case fieldRemoveExtraWS:
					mp.RemoveExtraWhitespaces = f.varint != 0
				case fieldEscapeWS:
					mp.EscapeWhitespaces = f.varint != 0
				}
				return nil
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("tokenizer: parse sentencepiece model: %w", err)
	}
	if len(mp.Pieces) == 0 {
		return nil, errors.New("tokenizer: parse sentencepiece model: no pieces")
	}
	return mp, nil
}

func parsePiece(b []byte) (Piece, error) {
	p := Piece{Type: Normal}
	err := walk(b, func(f field) error {
		switch {
		case f.num == fieldPiece && f.typ == protowire.BytesType:
			p.Piece = string(f.bytes)
		case f.num == fieldPieceScore && f.typ == protowire.Fixed32Type:
			p.Score = math.Float32frombits(f.fixed32)
		case f.num == fieldPieceType && f.typ == protowire.VarintType:
			p.Type = PieceType(f.varint)
		}
		return nil
	})
	return p, err
}

// Marshal serializes the model in the spiece.model wire format.
func (mp *ModelProto) Marshal() []byte {
	var b []byte
	for _, p := range mp.Pieces {
		var pb []byte
		pb = protowire.AppendTag(pb, fieldPiece, protowire.BytesType)
		pb = protowire.AppendString(pb, p.Piece)
		pb = protowire.AppendTag(pb, fieldPieceScore, protowire.Fixed32Type)
		pb = protowire.AppendFixed32(pb, math.Float32bits(p.Score))
		if p.Type != Normal && p.Type != 0 {
			pb = protowire.AppendTag(pb, fieldPieceType, protowire.VarintType)
			pb = protowire.AppendVarint(pb, uint64(p.Type))
		}
		b = protowire.AppendTag(b, fieldPieces, protowire.BytesType)
		b = protowire.AppendBytes(b, pb)
	}

	var tb []byte
	for _, kv := range []struct {
		num protowire.Number
		v   int
	}{
		{fieldModelType, mp.ModelType},
		{fieldUnkID, mp.UnkID},
		{fieldBOSID, mp.BOSID},
		{fieldEOSID, mp.EOSID},
		{fieldPadID, mp.PadID},
	} {
		tb = protowire.AppendTag(tb, kv.num, protowire.VarintType)
		tb = protowire.AppendVarint(tb, uint64(int64(kv.v)))
	}
	b = protowire.AppendTag(b, fieldTrainerSpec, protowire.BytesType)
	b = protowire.AppendBytes(b, tb)

	var nb []byte
	if mp.NormalizerName != "" {
		nb = protowire.AppendTag(nb, fieldNormName, protowire.BytesType)
		nb = protowire.AppendString(nb, mp.NormalizerName)
	}
	if len(mp.PrecompiledCharsmap) > 0 {
		nb = protowire.AppendTag(nb, fieldCharsmap, protowire.BytesType)
		nb = protowire.AppendBytes(nb, mp.PrecompiledCharsmap)
	}
	for _, kv := range []struct {
		num protowire.Number
		v   bool
	}{
		{fieldDummyPrefix, mp.AddDummyPrefix},
		{fieldRemoveExtraWS, mp.RemoveExtraWhitespaces},
		{fieldEscapeWS, mp.EscapeWhitespaces},
	} {
		nb = protowire.AppendTag(nb, kv.num, protowire.VarintType)
		nb = protowire.AppendVarint(nb, protowire.EncodeBool(kv.v))
	}
	b = protowire.AppendTag(b, fieldNormalizerSpec, protowire.BytesType)
	b = protowire.AppendBytes(b, nb)
	return b
}
