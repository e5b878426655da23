package accessor

import (
	"memtunnel/process"
)

// Primitive is the set of Go types with a process.Kind counterpart
type Primitive interface {
	uint8 | int16 | int32 | uint32 | float32 | float64
}

// KindOf returns the kind matching T
func KindOf[T Primitive]() process.Kind {
	var t T
	switch any(t).(type) {
	case uint8:
		return process.KindByte
	case int16:
		return process.KindInt16
	case int32:
		return process.KindInt32
	case uint32:
		return process.KindUint32
	case float32:
		return process.KindFloat32
	case float64:
		return process.KindFloat64
	}
	return process.KindInvalid
}

// Read reads a T at addr
func Read[T Primitive](a *Accessor, addr process.ProcessMemoryAddress) (T, error) {
	var out T
	v, err := a.ReadTyped(KindOf[T](), addr)
	if err != nil {
		return out, err
	}

	switch p := any(&out).(type) {
	case *uint8:
		*p = v.Byte()
	case *int16:
		*p = int16(v.Int16())
	case *int32:
		*p = v.Int32()
	case *uint32:
		*p = v.Uint32()
	case *float32:
		*p = v.Float32()
	case *float64:
		*p = v.Float64()
	}
	return out, nil
}

// Write writes val at addr in the width of T
func Write[T Primitive](a *Accessor, addr process.ProcessMemoryAddress, val T) error {
	return a.WriteTyped(KindOf[T](), addr, val)
}
