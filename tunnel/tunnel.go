// Package tunnel is the front door of memtunnel: an attached session together with a
// typed accessor and a pointer-chain resolver working through it.
//
//	t, err := tunnel.OpenByName(process_linux.New(), "game")
//	if err != nil {
//		return err
//	}
//	defer t.Detach()
//
//	hp, err := tunnel.Get[int32](t, process.NewMemoryAddress(0x00B28498, 0x464))
//
// Addresses with offsets are resolved first (see package pointer_chain), then the typed
// transfer happens at the resolved address.
package tunnel

import (
	"fmt"

	"memtunnel/accessor"
	"memtunnel/pointer_chain"
	"memtunnel/process"
	"memtunnel/session"
)

// Tunnel reads and writes typed values in an attached process
type Tunnel struct {
	*session.Session

	mem   *accessor.Accessor
	chain *pointer_chain.Resolver
}

type config struct {
	session  []session.Option
	accessor []accessor.Option
	chain    []pointer_chain.Option
}

// Option configures a Tunnel
type Option func(*config)

// WithSessionOptions passes options to the underlying session
func WithSessionOptions(opts ...session.Option) Option {
	return func(c *config) {
		c.session = append(c.session, opts...)
	}
}

// WithAccessorOptions passes options to the accessor
func WithAccessorOptions(opts ...accessor.Option) Option {
	return func(c *config) {
		c.accessor = append(c.accessor, opts...)
	}
}

// WithChainOptions passes options to the pointer-chain resolver
func WithChainOptions(opts ...pointer_chain.Option) Option {
	return func(c *config) {
		c.chain = append(c.chain, opts...)
	}
}

func buildConfig(opts []Option) *config {
	c := &config{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open attaches to pid
func Open(platform process.Platform, pid process.ProcessID, opts ...Option) (*Tunnel, error) {
	c := buildConfig(opts)
	s, err := session.Open(platform, pid, c.session...)
	if err != nil {
		return nil, err
	}
	return fromSession(s, c), nil
}

// OpenByName attaches to the first process with the given name
func OpenByName(platform process.Platform, name string, opts ...Option) (*Tunnel, error) {
	c := buildConfig(opts)
	s, err := session.OpenByName(platform, name, c.session...)
	if err != nil {
		return nil, err
	}
	return fromSession(s, c), nil
}

// FromSession wraps an existing session. The tunnel does not take over the session's
// lifecycle beyond what the embedded methods do.
func FromSession(s *session.Session, opts ...Option) *Tunnel {
	return fromSession(s, buildConfig(opts))
}

func fromSession(s *session.Session, c *config) *Tunnel {
	mem := accessor.ForSession(s, c.accessor...)
	chainOpts := append([]pointer_chain.Option{pointer_chain.WithLogger(s.Logger())}, c.chain...)
	return &Tunnel{
		Session: s,
		mem:     mem,
		chain:   pointer_chain.New(mem, chainOpts...),
	}
}

// Accessor returns the typed accessor
func (t *Tunnel) Accessor() *accessor.Accessor {
	return t.mem
}

// Resolver returns the pointer-chain resolver
func (t *Tunnel) Resolver() *pointer_chain.Resolver {
	return t.chain
}

// Pointer resolves start and offsets to the final address
func (t *Tunnel) Pointer(start process.ProcessMemoryAddress, offsets ...int32) (process.ProcessMemoryAddress, error) {
	return t.chain.Resolve(start, offsets...)
}

// PointerHex is Pointer with a hexadecimal start address
func (t *Tunnel) PointerHex(start string, offsets ...int32) (process.ProcessMemoryAddress, error) {
	addr, err := process.ParseAddress(start)
	if err != nil {
		return 0, err
	}
	return t.chain.Resolve(addr, offsets...)
}

// Relative builds an address relative to the main module base
func (t *Tunnel) Relative(offset process.ProcessMemoryAddress, offsets ...int32) process.MemoryAddress {
	return process.NewMemoryAddress(t.BaseAddress()+offset, offsets...)
}

func (t *Tunnel) resolve(ma process.MemoryAddress) (process.ProcessMemoryAddress, error) {
	addr, err := t.chain.ResolveAddress(ma)
	if err != nil {
		return 0, fmt.Errorf("resolve %s: %w", ma, err)
	}
	return addr, nil
}

// Read resolves ma and reads a value of kind there
func (t *Tunnel) Read(kind process.Kind, ma process.MemoryAddress) (process.Value, error) {
	if !kind.Valid() {
		_, err := kind.Size()
		return process.Value{}, err
	}
	addr, err := t.resolve(ma)
	if err != nil {
		return process.Value{}, err
	}
	return t.mem.ReadTyped(kind, addr)
}

// ReadAt is Read with the address given as start and offsets
func (t *Tunnel) ReadAt(kind process.Kind, start process.ProcessMemoryAddress, offsets ...int32) (process.Value, error) {
	return t.Read(kind, process.NewMemoryAddress(start, offsets...))
}

// ReadHex is Read with a hexadecimal start address such as "00B28498"
func (t *Tunnel) ReadHex(kind process.Kind, start string, offsets ...int32) (process.Value, error) {
	ma, err := process.ParseMemoryAddress(start, offsets...)
	if err != nil {
		return process.Value{}, err
	}
	return t.Read(kind, ma)
}

// Write resolves ma and writes value converted to kind
func (t *Tunnel) Write(kind process.Kind, ma process.MemoryAddress, value any) error {
	v, err := process.ValueOf(kind, value)
	if err != nil {
		return err
	}
	addr, err := t.resolve(ma)
	if err != nil {
		return err
	}
	return t.mem.WriteValue(addr, v)
}

// WriteAt is Write with the address given as start and offsets
func (t *Tunnel) WriteAt(kind process.Kind, start process.ProcessMemoryAddress, value any, offsets ...int32) error {
	return t.Write(kind, process.NewMemoryAddress(start, offsets...), value)
}

// WriteHex is Write with a hexadecimal start address
func (t *Tunnel) WriteHex(kind process.Kind, start string, value any, offsets ...int32) error {
	ma, err := process.ParseMemoryAddress(start, offsets...)
	if err != nil {
		return err
	}
	return t.Write(kind, ma, value)
}

// ReadBytes resolves ma and reads n raw bytes
func (t *Tunnel) ReadBytes(ma process.MemoryAddress, n int) ([]byte, error) {
	addr, err := t.resolve(ma)
	if err != nil {
		return nil, err
	}
	return t.mem.ReadBytes(addr, n)
}

// ReadAsciiZ resolves ma and reads a null-terminated ASCII string
func (t *Tunnel) ReadAsciiZ(ma process.MemoryAddress, maxLength int) (string, error) {
	addr, err := t.resolve(ma)
	if err != nil {
		return "", err
	}
	return t.mem.ReadAsciiZ(addr, maxLength)
}

// WriteAsciiZ resolves ma and writes s with a terminator
func (t *Tunnel) WriteAsciiZ(ma process.MemoryAddress, s string) error {
	addr, err := t.resolve(ma)
	if err != nil {
		return err
	}
	return t.mem.WriteAsciiZ(addr, s)
}

// ReadUtf16Z resolves ma and reads a null-terminated UTF-16 string
func (t *Tunnel) ReadUtf16Z(ma process.MemoryAddress, maxChars int) (string, error) {
	addr, err := t.resolve(ma)
	if err != nil {
		return "", err
	}
	return t.mem.ReadUtf16Z(addr, maxChars)
}

// WriteUtf16Z resolves ma and writes s as UTF-16 with a terminator
func (t *Tunnel) WriteUtf16Z(ma process.MemoryAddress, s string) error {
	addr, err := t.resolve(ma)
	if err != nil {
		return err
	}
	return t.mem.WriteUtf16Z(addr, s)
}

// Get resolves ma and reads a T there
func Get[T accessor.Primitive](t *Tunnel, ma process.MemoryAddress) (T, error) {
	addr, err := t.resolve(ma)
	if err != nil {
		var zero T
		return zero, err
	}
	return accessor.Read[T](t.mem, addr)
}

// Set resolves ma and writes val there
func Set[T accessor.Primitive](t *Tunnel, ma process.MemoryAddress, val T) error {
	addr, err := t.resolve(ma)
	if err != nil {
		return err
	}
	return accessor.Write[T](t.mem, addr, val)
}
