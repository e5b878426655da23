package accessor

import (
	"encoding/binary"
	"unicode/utf16"

	"memtunnel/process"
)

const pageSize = 4096

// ReadAsciiZ reads a null-terminated ASCII string of at most maxLength bytes. Bytes above
// 0x7F are replaced with '?'. Without a terminator within maxLength the first maxLength
// bytes are returned.
func (a *Accessor) ReadAsciiZ(addr process.ProcessMemoryAddress, maxLength int) (string, error) {
	raw, err := a.readZ(addr, maxLength, 1)
	if err != nil {
		return "", err
	}
	for i, b := range raw {
		if b > 0x7F {
			raw[i] = '?'
		}
	}
	return string(raw), nil
}

// WriteAsciiZ writes s followed by a zero byte. Runes outside ASCII are written as '?'.
func (a *Accessor) WriteAsciiZ(addr process.ProcessMemoryAddress, s string) error {
	return a.WriteBytes(addr, EncodeAsciiZ(s))
}

// ReadUtf16Z reads a null-terminated little-endian UTF-16 string of at most maxChars code units
func (a *Accessor) ReadUtf16Z(addr process.ProcessMemoryAddress, maxChars int) (string, error) {
	raw, err := a.readZ(addr, maxChars, 2)
	if err != nil {
		return "", err
	}
	units := make([]uint16, len(raw)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(raw[i*2:])
	}
	return string(utf16.Decode(units)), nil
}

// WriteUtf16Z writes s as little-endian UTF-16 followed by a zero code unit
func (a *Accessor) WriteUtf16Z(addr process.ProcessMemoryAddress, s string) error {
	return a.WriteBytes(addr, EncodeUtf16Z(s))
}

// EncodeAsciiZ returns the bytes WriteAsciiZ writes
func EncodeAsciiZ(s string) []byte {
	out := make([]byte, 0, len(s)+1)
	for _, r := range s {
		if r > 0x7F {
			r = '?'
		}
		out = append(out, byte(r))
	}
	return append(out, 0)
}

// EncodeUtf16Z returns the bytes WriteUtf16Z writes
func EncodeUtf16Z(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, (len(units)+1)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(out[i*2:], u)
	}
	return out
}

// readZ reads units of unitSize bytes until an all-zero unit or maxUnits. Each transfer
// stops at a page boundary so a string that ends just before unmapped memory is still
// readable; a transfer that comes up short before the terminator is ErrReadFailure.
func (a *Accessor) readZ(addr process.ProcessMemoryAddress, maxUnits int, unitSize int) ([]byte, error) {
	if maxUnits <= 0 {
		return []byte{}, nil
	}

	h := a.src.Handle()
	if h == process.InvalidHandle {
		return nil, process.NewReadError(addr, unitSize, 0, process.ErrProcessNotOpen)
	}

	limit := maxUnits * unitSize
	out := make([]byte, 0, min(limit, a.chunk))
	chunk := a.chunk - a.chunk%unitSize
	if chunk == 0 {
		chunk = unitSize
	}

	for len(out) < limit {
		cur := addr + process.ProcessMemoryAddress(len(out))

		n := min(chunk, limit-len(out))
		if toPage := int(pageSize - uint64(cur)%pageSize); toPage >= unitSize && toPage < n {
			n = toPage - toPage%unitSize
		}

		buf := make([]byte, n)
		got, err := a.mem.ReadMemory(h, cur, buf)
		usable := got - got%unitSize
		if usable > n {
			usable = n
		}

		for i := 0; i < usable; i += unitSize {
			if isZero(buf[i : i+unitSize]) {
				return append(out, buf[:i]...), nil
			}
		}
		out = append(out, buf[:usable]...)

		if err != nil || usable < n {
			return nil, process.NewReadError(cur, n, got, err)
		}
	}

	return out, nil
}

func isZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
