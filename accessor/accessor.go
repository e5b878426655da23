// Package accessor turns addresses and kinds into byte transfers on another process.
// It is the only place that knows how wide each kind is on the wire.
package accessor

import (
	"memtunnel/process"
	"memtunnel/session"
)

// HandleSource supplies the handle transfers go through. *session.Session implements it.
type HandleSource interface {
	Handle() process.Handle
}

// Accessor reads and writes typed values through a HandleSource's handle
type Accessor struct {
	mem   process.NativeMemory
	src   HandleSource
	chunk int
}

// Option configures an Accessor
type Option func(*Accessor)

// WithStringChunk sets how many bytes string reads fetch per transfer
func WithStringChunk(n int) Option {
	return func(a *Accessor) {
		if n > 0 {
			a.chunk = n
		}
	}
}

const defaultStringChunk = 64

// New creates an Accessor over mem using the handle src currently holds
func New(mem process.NativeMemory, src HandleSource, opts ...Option) *Accessor {
	a := &Accessor{
		mem:   mem,
		src:   src,
		chunk: defaultStringChunk,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ForSession creates an Accessor for an attached session
func ForSession(s *session.Session, opts ...Option) *Accessor {
	return New(s.Platform(), s, opts...)
}

// ReadBytes reads exactly n bytes at addr. Any shortfall is ErrReadFailure.
func (a *Accessor) ReadBytes(addr process.ProcessMemoryAddress, n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := a.readFull(addr, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (a *Accessor) readFull(addr process.ProcessMemoryAddress, buf []byte) error {
	h := a.src.Handle()
	if h == process.InvalidHandle {
		return process.NewReadError(addr, len(buf), 0, process.ErrProcessNotOpen)
	}

	got, err := a.mem.ReadMemory(h, addr, buf)
	if err != nil || got < len(buf) {
		return process.NewReadError(addr, len(buf), got, err)
	}
	return nil
}

// WriteBytes writes all of data at addr. Any shortfall is ErrWriteFailure.
func (a *Accessor) WriteBytes(addr process.ProcessMemoryAddress, data []byte) error {
	h := a.src.Handle()
	if h == process.InvalidHandle {
		return process.NewWriteError(addr, len(data), 0, process.ErrProcessNotOpen)
	}

	got, err := a.mem.WriteMemory(h, addr, data)
	if err != nil || got < len(data) {
		return process.NewWriteError(addr, len(data), got, err)
	}
	return nil
}

// ReadTyped reads kind.Size() bytes at addr and decodes them little-endian.
// An unsupported kind fails before any transfer.
func (a *Accessor) ReadTyped(kind process.Kind, addr process.ProcessMemoryAddress) (process.Value, error) {
	size, err := kind.Size()
	if err != nil {
		return process.Value{}, err
	}

	var buf [8]byte
	if err := a.readFull(addr, buf[:size]); err != nil {
		return process.Value{}, err
	}
	return process.DecodeValue(kind, buf[:size])
}

// WriteTyped converts value to kind following process.ValueOf's rules and writes it
func (a *Accessor) WriteTyped(kind process.Kind, addr process.ProcessMemoryAddress, value any) error {
	v, err := process.ValueOf(kind, value)
	if err != nil {
		return err
	}
	return a.WriteValue(addr, v)
}

// WriteValue writes an already tagged value
func (a *Accessor) WriteValue(addr process.ProcessMemoryAddress, v process.Value) error {
	data, err := v.Bytes()
	if err != nil {
		return err
	}
	return a.WriteBytes(addr, data)
}

// ReadInt32 reads the 32-bit signed value used for pointer hops
func (a *Accessor) ReadInt32(addr process.ProcessMemoryAddress) (int32, error) {
	return Read[int32](a, addr)
}
