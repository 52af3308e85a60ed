package keyencoding

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// ValueType enumerates the built-in attribute value types
// Struct is the open case for user-defined struct value types, identified
// by name rather than a fixed tag.
type ValueType struct {
	Kind       ValueKind
	StructName string // set only when Kind == ValueStruct
}

type ValueKind byte

const (
	ValueBoolean ValueKind = iota
	ValueInteger
	ValueDouble
	ValueDecimal
	ValueString
	ValueDate
	ValueDateTime
	ValueDateTimeTZ
	ValueDuration
	ValueStruct
)

func (k ValueKind) String() string {
	switch k {
	case ValueBoolean:
		return "boolean"
	case ValueInteger:
		return "integer"
	case ValueDouble:
		return "double"
	case ValueDecimal:
		return "decimal"
	case ValueString:
		return "string"
	case ValueDate:
		return "date"
	case ValueDateTime:
		return "datetime"
	case ValueDateTimeTZ:
		return "datetime-tz"
	case ValueDuration:
		return "duration"
	case ValueStruct:
		return "struct"
	default:
		return "unknown"
	}
}

// Decimal is a fixed-point value represented as an unscaled integer and a
// scale (number of digits after the point), avoiding a dependency the pack
// never imports for this concern (see DESIGN.md).
type Decimal struct {
	Unscaled int64
	Scale    uint8
}

// EncodeValueBytes renders a concrete attribute value to its canonical byte
// form, used both to decide inline-vs-hash encoding and, for hashed values,
// as the input to HashValue. Encoding is fixed-width per value kind except
// for strings, which are their raw bytes; either way two equal values always
// produce identical bytes, which is what makes the
// at-most-one-attribute-per-value invariant enforceable by key identity.
func EncodeValueBytes(kind ValueKind, v any) ([]byte, error) {
	switch kind {
	case ValueBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("keyencoding: expected bool, got %T", v)
		}
		if b {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case ValueInteger:
		i, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("keyencoding: expected int64, got %T", v)
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(i)^signFlip64)
		return buf, nil
	case ValueDouble:
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("keyencoding: expected float64, got %T", v)
		}
		bits := math.Float64bits(f)
		if bits&(1<<63) != 0 {
			bits = ^bits
		} else {
			bits |= 1 << 63
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, bits)
		return buf, nil
	case ValueDecimal:
		d, ok := v.(Decimal)
		if !ok {
			return nil, fmt.Errorf("keyencoding: expected Decimal, got %T", v)
		}
		buf := make([]byte, 9)
		binary.BigEndian.PutUint64(buf, uint64(d.Unscaled)^signFlip64)
		buf[8] = d.Scale
		return buf, nil
	case ValueString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("keyencoding: expected string, got %T", v)
		}
		return []byte(s), nil
	case ValueDate:
		t, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("keyencoding: expected time.Time, got %T", v)
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(t.Unix()/86400)+1<<31)
		return buf, nil
	case ValueDateTime:
		t, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("keyencoding: expected time.Time, got %T", v)
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(t.UnixNano())^signFlip64)
		return buf, nil
	case ValueDateTimeTZ:
		t, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("keyencoding: expected time.Time, got %T", v)
		}
		_, offset := t.Zone()
		buf := make([]byte, 12)
		binary.BigEndian.PutUint64(buf[:8], uint64(t.UnixNano())^signFlip64)
		binary.BigEndian.PutUint32(buf[8:], uint32(int32(offset))+1<<31)
		return buf, nil
	case ValueDuration:
		d, ok := v.(time.Duration)
		if !ok {
			return nil, fmt.Errorf("keyencoding: expected time.Duration, got %T", v)
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(int64(d))^signFlip64)
		return buf, nil
	default:
		return nil, fmt.Errorf("keyencoding: unsupported value kind %v for direct encoding", kind)
	}
}

// signFlip64 flips the sign bit so that big-endian byte comparison of the
// encoded form matches numeric ordering for signed 64-bit quantities.
const signFlip64 = uint64(1) << 63

// DecodeValueBytes reverses EncodeValueBytes, reconstructing the concrete
// Go value a stored attribute's canonical bytes represent (
// property 1: "decode(encode(x)) == x bit-for-bit").
func DecodeValueBytes(kind ValueKind, raw []byte) (any, error) {
	switch kind {
	case ValueBoolean:
		if len(raw) != 1 {
			return nil, fmt.Errorf("keyencoding: bad boolean length %d", len(raw))
		}
		return raw[0] != 0, nil
	case ValueInteger:
		if len(raw) != 8 {
			return nil, fmt.Errorf("keyencoding: bad integer length %d", len(raw))
		}
		return int64(binary.BigEndian.Uint64(raw) ^ signFlip64), nil
	case ValueDouble:
		if len(raw) != 8 {
			return nil, fmt.Errorf("keyencoding: bad double length %d", len(raw))
		}
		bits := binary.BigEndian.Uint64(raw)
		if bits&(1<<63) != 0 {
			bits &^= 1 << 63
		} else {
			bits = ^bits
		}
		return math.Float64frombits(bits), nil
	case ValueDecimal:
		if len(raw) != 9 {
			return nil, fmt.Errorf("keyencoding: bad decimal length %d", len(raw))
		}
		unscaled := int64(binary.BigEndian.Uint64(raw[:8]) ^ signFlip64)
		return Decimal{Unscaled: unscaled, Scale: raw[8]}, nil
	case ValueString:
		s := make([]byte, len(raw))
		copy(s, raw)
		return string(s), nil
	case ValueDate:
		if len(raw) != 4 {
			return nil, fmt.Errorf("keyencoding: bad date length %d", len(raw))
		}
		days := int64(binary.BigEndian.Uint32(raw)) - 1<<31
		return time.Unix(days*86400, 0).UTC(), nil
	case ValueDateTime:
		if len(raw) != 8 {
			return nil, fmt.Errorf("keyencoding: bad datetime length %d", len(raw))
		}
		nanos := int64(binary.BigEndian.Uint64(raw) ^ signFlip64)
		return time.Unix(0, nanos).UTC(), nil
	case ValueDateTimeTZ:
		if len(raw) != 12 {
			return nil, fmt.Errorf("keyencoding: bad datetime-tz length %d", len(raw))
		}
		nanos := int64(binary.BigEndian.Uint64(raw[:8]) ^ signFlip64)
		offset := int32(binary.BigEndian.Uint32(raw[8:]) - 1<<31)
		return time.Unix(0, nanos).In(time.FixedZone("", int(offset))), nil
	case ValueDuration:
		if len(raw) != 8 {
			return nil, fmt.Errorf("keyencoding: bad duration length %d", len(raw))
		}
		return time.Duration(int64(binary.BigEndian.Uint64(raw) ^ signFlip64)), nil
	default:
		return nil, fmt.Errorf("keyencoding: unsupported value kind %v for decoding", kind)
	}
}
