package process

import (
	"fmt"
	"strings"
)

// Kind is the closed set of primitive value representations memtunnel can encode and decode.
// The zero Kind is invalid so an unset field never silently means "byte".
type Kind uint8

const (
	KindInvalid Kind = iota
	KindByte         // uint8, 1 byte
	KindInt16        // int16, 2 bytes, widened to int on read
	KindInt32        // int32, 4 bytes
	KindUint32       // uint32, 4 bytes
	KindFloat32      // IEEE 754 binary32, 4 bytes
	KindFloat64      // IEEE 754 binary64, 8 bytes
)

// Kinds lists every supported kind in declaration order.
var Kinds = []Kind{KindByte, KindInt16, KindInt32, KindUint32, KindFloat32, KindFloat64}

// Size returns the fixed byte width of the kind.
func (k Kind) Size() (int, error) {
	switch k {
	case KindByte:
		return 1, nil
	case KindInt16:
		return 2, nil
	case KindInt32, KindUint32, KindFloat32:
		return 4, nil
	case KindFloat64:
		return 8, nil
	}
	return 0, fmt.Errorf("%w: kind %d", ErrUnsupportedType, uint8(k))
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	_, err := k.Size()
	return err == nil
}

func (k Kind) String() string {
	switch k {
	case KindByte:
		return "byte"
	case KindInt16:
		return "int16"
	case KindInt32:
		return "int32"
	case KindUint32:
		return "uint32"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind maps a name such as "int32", "float" or "double" to a Kind.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(name) {
	case "byte", "uint8", "u8":
		return KindByte, nil
	case "int16", "short", "i16":
		return KindInt16, nil
	case "int32", "int", "i32":
		return KindInt32, nil
	case "uint32", "uint", "u32":
		return KindUint32, nil
	case "float32", "float", "f32":
		return KindFloat32, nil
	case "float64", "double", "f64":
		return KindFloat64, nil
	}
	return KindInvalid, fmt.Errorf("%w: %q", ErrUnsupportedType, name)
}
