package process

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Value is a tagged value of one of the supported kinds. The payload is kept as its raw
// little-endian bit pattern, zero-extended to 64 bits.
type Value struct {
	kind Kind
	bits uint64
}

func ByteValue(v uint8) Value { return Value{kind: KindByte, bits: uint64(v)} }
func Int16Value(v int16) Value { return Value{kind: KindInt16, bits: uint64(uint16(v))} }
func Int32Value(v int32) Value { return Value{kind: KindInt32, bits: uint64(uint32(v))} }
func Uint32Value(v uint32) Value { return Value{kind: KindUint32, bits: uint64(v)} }
func Float32Value(v float32) Value { return Value{kind: KindFloat32, bits: uint64(math.Float32bits(v))} }
func Float64Value(v float64) Value { return Value{kind: KindFloat64, bits: math.Float64bits(v)} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) Byte() uint8 { return uint8(v.bits) }

// Int16 returns the 16-bit value sign-extended to the native int.
func (v Value) Int16() int { return int(int16(v.bits)) }

func (v Value) Int32() int32 { return int32(uint32(v.bits)) }
func (v Value) Uint32() uint32 { return uint32(v.bits) }
func (v Value) Float32() float32 { return math.Float32frombits(uint32(v.bits)) }
func (v Value) Float64() float64 { return math.Float64frombits(v.bits) }

// Interface returns the value as the Go type of its kind: uint8, int (for KindInt16),
// int32, uint32, float32 or float64. It returns nil for the zero Value.
func (v Value) Interface() any {
	switch v.kind {
	case KindByte:
		return v.Byte()
	case KindInt16:
		return v.Int16()
	case KindInt32:
		return v.Int32()
	case KindUint32:
		return v.Uint32()
	case KindFloat32:
		return v.Float32()
	case KindFloat64:
		return v.Float64()
	}
	return nil
}

func (v Value) String() string {
	if !v.kind.Valid() {
		return "<invalid>"
	}
	return fmt.Sprintf("%v (%s)", v.Interface(), v.kind)
}

// Bytes returns the fixed-width little-endian encoding of the value.
func (v Value) Bytes() ([]byte, error) {
	size, err := v.kind.Size()
	if err != nil {
		return nil, err
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v.bits)
	out := make([]byte, size)
	copy(out, buf[:size])
	return out, nil
}

// DecodeValue decodes the first kind.Size() bytes of data as a little-endian value.
// A buffer shorter than the kind's width is reported as ErrReadFailure: it can only come
// from an incomplete transfer and must never be zero-padded.
func DecodeValue(kind Kind, data []byte) (Value, error) {
	size, err := kind.Size()
	if err != nil {
		return Value{}, err
	}
	if len(data) < size {
		return Value{}, fmt.Errorf("%w: %s needs %d bytes, have %d", ErrReadFailure, kind, size, len(data))
	}

	var buf [8]byte
	copy(buf[:], data[:size])
	return Value{kind: kind, bits: binary.LittleEndian.Uint64(buf[:])}, nil
}

// ValueOf converts a Go value to the given kind.
//
// Conversion rules:
//   - KindByte, KindInt16, KindInt32, KindUint32 from any Go integer keep the low 8, 16 or
//     32 bits of the two's-complement representation (int 300 as KindByte is 44, int -1 as
//     KindUint32 is 0xFFFFFFFF).
//   - the same kinds from float32/float64 first truncate toward zero, then keep the low bits
//     as above; NaN, infinities and magnitudes beyond int64 fail with ErrUnsupportedType.
//   - KindFloat32 and KindFloat64 from any integer or float take the nearest representable
//     value, as a Go conversion does (float64 1e300 as KindFloat32 is +Inf).
//   - a Value is converted through its Interface() result.
//   - every other Go type (bool, string, pointers, structs) fails with ErrUnsupportedType.
func ValueOf(kind Kind, x any) (Value, error) {
	size, err := kind.Size()
	if err != nil {
		return Value{}, err
	}

	if v, ok := x.(Value); ok {
		if v.kind == kind {
			return v, nil
		}
		if !v.kind.Valid() {
			return Value{}, fmt.Errorf("%w: invalid source value", ErrUnsupportedType)
		}
		x = v.Interface()
	}

	var (
		bits    uint64
		f       float64
		isFloat bool
	)
	switch n := x.(type) {
	case int:
		bits = uint64(n)
	case int8:
		bits = uint64(n)
	case int16:
		bits = uint64(n)
	case int32:
		bits = uint64(n)
	case int64:
		bits = uint64(n)
	case uint:
		bits = uint64(n)
	case uint8:
		bits = uint64(n)
	case uint16:
		bits = uint64(n)
	case uint32:
		bits = uint64(n)
	case uint64:
		bits = n
	case uintptr:
		bits = uint64(n)
	case float32:
		f, isFloat = float64(n), true
	case float64:
		f, isFloat = n, true
	default:
		return Value{}, fmt.Errorf("%w: cannot convert %T to %s", ErrUnsupportedType, x, kind)
	}

	switch kind {
	case KindFloat32:
		if isFloat {
			return Float32Value(float32(f)), nil
		}
		return Float32Value(float32(integerAsFloat(x, bits))), nil
	case KindFloat64:
		if isFloat {
			return Float64Value(f), nil
		}
		return Float64Value(integerAsFloat(x, bits)), nil
	}

	if isFloat {
		if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
			return Value{}, fmt.Errorf("%w: %v does not fit an integer %s", ErrUnsupportedType, f, kind)
		}
		bits = uint64(int64(f))
	}

	mask := uint64(1)<<(uint(size)*8) - 1
	return Value{kind: kind, bits: bits & mask}, nil
}

// integerAsFloat interprets bits according to the signedness of the original Go type.
func integerAsFloat(x any, bits uint64) float64 {
	switch x.(type) {
	case uint, uint8, uint16, uint32, uint64, uintptr:
		return float64(bits)
	}
	return float64(int64(bits))
}
