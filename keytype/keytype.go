// Package keytype implements the supported B+-tree key types (spec §6):
// fixed-width integers, fixed-length character, variable character, and
// variable bytes ("blob"). Each type knows how to byte-compare (fixed) or
// explicitly compare (variable), serialize, deserialize, and report its
// persisted/maximum length.
//
// Grounded on original_source/src/dataType/{DataValueLong,DataValueUShort,
// DataValueFixChar,DataValueBlob}.{h,cpp}: the original engine keeps one
// concrete DataValue subclass per SQL type; we collapse that into a single
// closed Kind enum plus a Codec per kind, since Go favors a sum type over a
// class hierarchy here (design notes §9, "any/dynamic conversion on data
// values" -> "closed sum type, explicit fallible conversions").
package keytype

import (
	"bytes"
	"encoding/binary"
	"fmt"

	rdberrs "github.com/my-db-dev/RapidDB/errs"
)

type Kind uint8

const (
	Int8 Kind = iota
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	FixedChar  // fixed-length, padded with 0x20 on encode
	VarChar    // variable-length text
	VarBytes   // variable-length opaque "blob"
)

// Schema describes one key (or value) column's declared type.
type Schema struct {
	Kind Kind
	// MaxLen is the declared maximum length in bytes for FixedChar/VarChar/
	// VarBytes columns; ignored for fixed-width integer kinds.
	MaxLen int
}

func (s Schema) isVariable() bool {
	return s.Kind == VarChar || s.Kind == VarBytes
}

// FixedWidth returns the on-disk width for integer and FixedChar kinds, or
// -1 for variable-length kinds (their width is prefixed in the record).
func (s Schema) FixedWidth() int {
	switch s.Kind {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32:
		return 4
	case Int64, Uint64:
		return 8
	case FixedChar:
		return s.MaxLen
	default:
		return -1
	}
}

// MaxLength returns the maximum persisted length for this schema.
func (s Schema) MaxLength() int {
	if w := s.FixedWidth(); w >= 0 {
		return w
	}
	return s.MaxLen
}

// Encode serializes a Go value according to the schema. Integers accept
// the matching Go integer kind (int8/uint8/.../uint64); FixedChar/VarChar
// accept string; VarBytes accepts []byte.
func Encode(s Schema, v interface{}) ([]byte, error) {
	buf := make([]byte, 0, 8)
	switch s.Kind {
	case Int8:
		x, ok := v.(int8)
		if !ok {
			return nil, rdberrs.New("keytype.Encode", rdberrs.UnsupportedConvert)
		}
		buf = append(buf, byte(x))
	case Uint8:
		x, ok := v.(uint8)
		if !ok {
			return nil, rdberrs.New("keytype.Encode", rdberrs.UnsupportedConvert)
		}
		buf = append(buf, x)
	case Int16, Uint16:
		x, err := toUint64(s.Kind, v)
		if err != nil {
			return nil, err
		}
		buf = binary.LittleEndian.AppendUint16(buf, uint16(x))
	case Int32, Uint32:
		x, err := toUint64(s.Kind, v)
		if err != nil {
			return nil, err
		}
		buf = binary.LittleEndian.AppendUint32(buf, uint32(x))
	case Int64, Uint64:
		x, err := toUint64(s.Kind, v)
		if err != nil {
			return nil, err
		}
		buf = binary.LittleEndian.AppendUint64(buf, x)
	case FixedChar:
		str, ok := v.(string)
		if !ok {
			return nil, rdberrs.New("keytype.Encode", rdberrs.UnsupportedConvert)
		}
		if len(str) > s.MaxLen {
			return nil, rdberrs.New("keytype.Encode", rdberrs.InputOverLength)
		}
		buf = make([]byte, s.MaxLen)
		copy(buf, str)
		for i := len(str); i < s.MaxLen; i++ {
			buf[i] = ' '
		}
	case VarChar:
		str, ok := v.(string)
		if !ok {
			return nil, rdberrs.New("keytype.Encode", rdberrs.UnsupportedConvert)
		}
		if len(str) > s.MaxLen {
			return nil, rdberrs.New("keytype.Encode", rdberrs.InputOverLength)
		}
		buf = []byte(str)
	case VarBytes:
		b, ok := v.([]byte)
		if !ok {
			return nil, rdberrs.New("keytype.Encode", rdberrs.UnsupportedConvert)
		}
		if len(b) > s.MaxLen {
			return nil, rdberrs.New("keytype.Encode", rdberrs.InputOverLength)
		}
		buf = append(buf, b...)
	default:
		return nil, fmt.Errorf("keytype: unknown kind %d", s.Kind)
	}
	return buf, nil
}

func toUint64(k Kind, v interface{}) (uint64, error) {
	switch x := v.(type) {
	case int16:
		return uint64(uint16(x)), nil
	case uint16:
		return uint64(x), nil
	case int32:
		return uint64(uint32(x)), nil
	case uint32:
		return uint64(x), nil
	case int64:
		return uint64(x), nil
	case uint64:
		return x, nil
	case int:
		return uint64(x), nil
	default:
		return 0, rdberrs.New("keytype.Encode", rdberrs.UnsupportedConvert)
	}
}

// Compare orders two encoded key byte strings per schema s.
//
// Integer kinds compare their little-endian encodings most-significant
// byte first (compareSigned flips the sign bit of the top byte,
// compareUnsigned does not), giving numeric order; FixedChar and the
// variable kinds use bytes.Compare (spec §4.4 "Compare dispatch").
func Compare(s Schema, a, b []byte) int {
	switch s.Kind {
	case Int8, Int16, Int32, Int64:
		return compareSigned(a, b)
	case Uint8, Uint16, Uint32, Uint64:
		return compareUnsigned(a, b)
	default:
		return bytes.Compare(a, b)
	}
}

// compareSigned compares two little-endian two's-complement integers of
// equal length by comparing their big-endian sign-flipped form.
func compareSigned(a, b []byte) int {
	if len(a) == 0 || len(b) == 0 {
		return bytes.Compare(a, b)
	}
	signA := a[len(a)-1] ^ 0x80
	signB := b[len(b)-1] ^ 0x80
	for i := len(a) - 1; i >= 0; i-- {
		var ba, bb byte
		if i == len(a)-1 {
			ba, bb = signA, signB
		} else {
			ba, bb = a[i], b[i]
		}
		if ba != bb {
			if ba < bb {
				return -1
			}
			return 1
		}
	}
	return 0
}

// compareUnsigned compares two little-endian unsigned integers of equal
// length most-significant byte first, since plain bytes.Compare would
// compare them least-significant byte first.
func compareUnsigned(a, b []byte) int {
	if len(a) == 0 || len(b) == 0 {
		return bytes.Compare(a, b)
	}
	for i := len(a) - 1; i >= 0; i-- {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Decode reverses Encode for display/debugging and for explicit-compare
// variable types.
func Decode(s Schema, buf []byte) (interface{}, error) {
	switch s.Kind {
	case Int8:
		return int8(buf[0]), nil
	case Uint8:
		return buf[0], nil
	case Int16:
		return int16(binary.LittleEndian.Uint16(buf)), nil
	case Uint16:
		return binary.LittleEndian.Uint16(buf), nil
	case Int32:
		return int32(binary.LittleEndian.Uint32(buf)), nil
	case Uint32:
		return binary.LittleEndian.Uint32(buf), nil
	case Int64:
		return int64(binary.LittleEndian.Uint64(buf)), nil
	case Uint64:
		return binary.LittleEndian.Uint64(buf), nil
	case FixedChar:
		return string(bytes.TrimRight(buf, " ")), nil
	case VarChar:
		return string(buf), nil
	case VarBytes:
		cp := make([]byte, len(buf))
		copy(cp, buf)
		return cp, nil
	default:
		return nil, fmt.Errorf("keytype: unknown kind %d", s.Kind)
	}
}
