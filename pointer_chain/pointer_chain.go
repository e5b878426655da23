// Package pointer_chain resolves multi-level pointer paths in a 32-bit target.
//
// Starting from a start address, each offset is applied by first reading a 32-bit
// pointer at the current address and then adding the offset to the pointer value:
//
//	start -> *(start)+off0 -> *(*(start)+off0)+off1 -> ... -> result
//
// The start address itself is always dereferenced when at least one offset is given, and
// the result is never dereferenced. With no offsets the start address is returned as is.
//
// The walk is not atomic: every hop is a separate read, so a target that rewrites the
// chain while it is being walked can yield an address that never existed as a whole.
// Callers that need a consistent view must pause the target themselves.
package pointer_chain

import (
	"errors"
	"fmt"

	"memtunnel/process"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// Int32Reader reads the 32-bit signed values the chain is made of.
// *accessor.Accessor implements it.
type Int32Reader interface {
	ReadInt32(addr process.ProcessMemoryAddress) (int32, error)
}

// Hop is one step of a resolved chain
type Hop struct {
	Address process.ProcessMemoryAddress // where the pointer was read
	Pointer uint32                       // the value read, as an unsigned 32-bit address
	Offset  int32
	Result  process.ProcessMemoryAddress // Pointer + Offset
}

func (h Hop) String() string {
	return fmt.Sprintf("*(%s) => 0x%X %+d => %s", h.Address.ToString(), h.Pointer, h.Offset, h.Result.ToString())
}

// Resolver walks pointer chains through an Int32Reader
type Resolver struct {
	reader Int32Reader
	log    *logger.Logger
	trace  bool
}

// Option configures a Resolver
type Option func(*Resolver)

// WithLogger replaces the resolver's logger
func WithLogger(l *logger.Logger) Option {
	return func(r *Resolver) {
		r.log = l
	}
}

// WithTrace logs every hop at debug level
func WithTrace(trace bool) Option {
	return func(r *Resolver) {
		r.trace = trace
	}
}

// New creates a Resolver reading through reader
func New(reader Int32Reader, opts ...Option) *Resolver {
	r := &Resolver{
		reader: reader,
		log:    logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "pointer-chain")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the address the chain ends at. A failed hop aborts the walk and
// returns an error wrapping process.ErrReadFailure.
func (r *Resolver) Resolve(start process.ProcessMemoryAddress, offsets ...int32) (process.ProcessMemoryAddress, error) {
	if len(offsets) == 0 {
		return start, nil
	}

	current := start
	for i, off := range offsets {
		hop, err := r.hop(i, current, off)
		if err != nil {
			return 0, err
		}
		current = hop.Result
	}
	return current, nil
}

// ResolveAddress resolves a process.MemoryAddress
func (r *Resolver) ResolveAddress(ma process.MemoryAddress) (process.ProcessMemoryAddress, error) {
	return r.Resolve(ma.Start, ma.Offsets...)
}

// Trace walks the chain like Resolve and returns every hop
func (r *Resolver) Trace(start process.ProcessMemoryAddress, offsets ...int32) ([]Hop, error) {
	hops := make([]Hop, 0, len(offsets))
	current := start
	for i, off := range offsets {
		hop, err := r.hop(i, current, off)
		if err != nil {
			return nil, err
		}
		hops = append(hops, hop)
		current = hop.Result
	}
	return hops, nil
}

func (r *Resolver) hop(i int, current process.ProcessMemoryAddress, off int32) (Hop, error) {
	ptr, err := r.reader.ReadInt32(current)
	if err != nil {
		if !errors.Is(err, process.ErrReadFailure) {
			err = fmt.Errorf("%w: %w", process.ErrReadFailure, err)
		}
		return Hop{}, fmt.Errorf("pointer chain step %d at %s: %w", i, current.ToString(), err)
	}

	// pointers of a 32-bit target are unsigned; large-address-aware processes use the top half
	hop := Hop{
		Address: current,
		Pointer: uint32(ptr),
		Offset:  off,
		Result:  process.ProcessMemoryAddress(uint32(ptr)).Add(off),
	}

	if r.trace {
		r.log.Debugln("step", i, hop.String())
	}
	return hop, nil
}
