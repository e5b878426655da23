// Package process defines the types shared by every part of memtunnel: addresses,
// the closed set of value kinds, the native memory capability and process discovery.
package process

import (
	"errors"
	"fmt"
)

var (
	// ErrProcessNotFound is returned when a PID or name lookup yields no running process.
	ErrProcessNotFound = errors.New("process not found")

	// ErrAttachFailure is returned when a memory-access handle to the target cannot be acquired,
	// typically for lack of privilege.
	ErrAttachFailure = errors.New("attach failed")

	// ErrInvalidAddress is returned for malformed hexadecimal addresses and offsets.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrUnsupportedType is returned for a Kind outside the supported set, or a Go value that
	// cannot be converted to one.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrReadFailure is returned when a read transferred fewer bytes than requested.
	ErrReadFailure = errors.New("read failed")

	// ErrWriteFailure is returned when a write transferred fewer bytes than requested.
	ErrWriteFailure = errors.New("write failed")

	// ErrProcessNotOpen is returned when an operation requiring an attached process is attempted
	// before attach or after detach.
	ErrProcessNotOpen = errors.New("process not open")
)

// MemoryError describes a failed transfer. It unwraps to ErrReadFailure or ErrWriteFailure
// and to the underlying cause, if any.
type MemoryError struct {
	Op      string // "read" or "write"
	Address ProcessMemoryAddress
	Want    int
	Got     int
	Err     error
}

func (e *MemoryError) Error() string {
	msg := fmt.Sprintf("%s %d bytes at %s: transferred %d", e.Op, e.Want, e.Address.ToString(), e.Got)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MemoryError) Unwrap() []error {
	kind := ErrReadFailure
	if e.Op == "write" {
		kind = ErrWriteFailure
	}
	if e.Err == nil {
		return []error{kind}
	}
	return []error{kind, e.Err}
}

// NewReadError builds the error for a read of want bytes that moved got bytes.
func NewReadError(addr ProcessMemoryAddress, want, got int, cause error) error {
	return &MemoryError{Op: "read", Address: addr, Want: want, Got: got, Err: cause}
}

// NewWriteError builds the error for a write of want bytes that moved got bytes.
func NewWriteError(addr ProcessMemoryAddress, want, got int, cause error) error {
	return &MemoryError{Op: "write", Address: addr, Want: want, Got: got, Err: cause}
}
