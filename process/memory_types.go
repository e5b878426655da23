package process

import (
	"fmt"
	"strconv"
	"strings"
)

// ProcessMemoryAddress represents a virtual address within the target process
type ProcessMemoryAddress uint64

func (pma ProcessMemoryAddress) ToString() string {
	return fmt.Sprintf("0x%X", uint64(pma))
}

// Hex renders the address the way ParseAddress accepts it: upper-case, no prefix,
// padded to at least 8 digits.
func (pma ProcessMemoryAddress) Hex() string {
	return fmt.Sprintf("%08X", uint64(pma))
}

// Add applies a signed offset with wrap-around arithmetic.
func (pma ProcessMemoryAddress) Add(offset int32) ProcessMemoryAddress {
	return ProcessMemoryAddress(uint64(pma) + uint64(int64(offset)))
}

// ProcessMemorySize represents a size of memory region
type ProcessMemorySize uint

func (pms ProcessMemorySize) ToString() string {
	return fmt.Sprintf("%d bytes", uint(pms))
}

// ParseAddress converts a hexadecimal string without a 0x prefix, such as "00B28498",
// into an address. Malformed input fails with ErrInvalidAddress instead of yielding zero.
func ParseAddress(hex string) (ProcessMemoryAddress, error) {
	if hex == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidAddress)
	}
	if strings.HasPrefix(hex, "0x") || strings.HasPrefix(hex, "0X") {
		return 0, fmt.Errorf("%w: %q has a 0x prefix", ErrInvalidAddress, hex)
	}
	if hex[0] == '+' || hex[0] == '-' {
		return 0, fmt.Errorf("%w: %q is signed", ErrInvalidAddress, hex)
	}

	v, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, hex, err)
	}
	return ProcessMemoryAddress(v), nil
}

// MemoryAddress is a start address plus an ordered list of pointer-chain offsets.
// An empty Offsets slice denotes a direct access at Start.
type MemoryAddress struct {
	Start   ProcessMemoryAddress
	Offsets []int32
}

// NewMemoryAddress builds a MemoryAddress, copying offsets.
func NewMemoryAddress(start ProcessMemoryAddress, offsets ...int32) MemoryAddress {
	ma := MemoryAddress{Start: start}
	if len(offsets) > 0 {
		ma.Offsets = append([]int32(nil), offsets...)
	}
	return ma
}

// ParseMemoryAddress is NewMemoryAddress with a hexadecimal start address.
func ParseMemoryAddress(hex string, offsets ...int32) (MemoryAddress, error) {
	start, err := ParseAddress(hex)
	if err != nil {
		return MemoryAddress{}, err
	}
	return NewMemoryAddress(start, offsets...), nil
}

// IsDirect reports whether no pointer chain has to be followed.
func (ma MemoryAddress) IsDirect() bool {
	return len(ma.Offsets) == 0
}

func (ma MemoryAddress) String() string {
	if ma.IsDirect() {
		return ma.Start.ToString()
	}
	parts := make([]string, len(ma.Offsets))
	for i, off := range ma.Offsets {
		if off < 0 {
			parts[i] = fmt.Sprintf("-0x%X", -int64(off))
		} else {
			parts[i] = fmt.Sprintf("0x%X", off)
		}
	}
	return fmt.Sprintf("[%s] -> %s", ma.Start.ToString(), strings.Join(parts, " -> "))
}

// ParseOffset accepts decimal or 0x-prefixed hexadecimal offsets, optionally negative.
func ParseOffset(s string) (int32, error) {
	v, err := strconv.ParseInt(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: offset %q: %v", ErrInvalidAddress, s, err)
	}
	return int32(v), nil
}
