package pointer_chain

import (
	"encoding/binary"
	"errors"
	"testing"

	"memtunnel/accessor"
	"memtunnel/process"
	"memtunnel/process_blob"
	"memtunnel/session"
)

// memory layout shared by the tests:
//
//	0x00B28498: 0x00200000           static pointer
//	0x00200464: 0x00300000           second level
//	0x00300010: float 100.0          value
type chainFixture struct {
	platform *process_blob.Platform
	image    *process_blob.ProcessImage
	resolver *Resolver
}

func newFixture(t *testing.T, opts ...Option) *chainFixture {
	t.Helper()

	p := process_blob.NewPlatform()
	img := p.AddProcess(1, "game")
	img.AddModule("game", 0x00400000)
	img.Map(0x00B28000, 0x1000, true)
	img.Map(0x00200000, 0x1000, true)
	img.Map(0x00300000, 0x1000, true)

	putUint32(img, 0x00B28498, 0x00200000)
	putUint32(img, 0x00200464, 0x00300000)

	s, err := session.Open(p, 1)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Detach() })

	p.ResetLog()
	return &chainFixture{
		platform: p,
		image:    img,
		resolver: New(accessor.ForSession(s), opts...),
	}
}

func putUint32(img *process_blob.ProcessImage, addr process.ProcessMemoryAddress, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	img.Poke(addr, buf[:])
}

func TestNoOffsetsReturnsStartWithoutReading(t *testing.T) {
	f := newFixture(t)

	got, err := f.resolver.Resolve(0x00B28498)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x00B28498 {
		t.Fatalf("got %s", got.ToString())
	}
	if n := len(f.platform.Reads()); n != 0 {
		t.Fatalf("%d reads performed, want none", n)
	}
}

func TestSingleOffset(t *testing.T) {
	f := newFixture(t)
	putUint32(f.image, 0x00B28000, 0x00300000)

	got, err := f.resolver.Resolve(0x00B28000, 0x10)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x00300010 {
		t.Fatalf("got %s, want 0x300010", got.ToString())
	}

	reads := f.platform.Reads()
	if len(reads) != 1 || reads[0].Address != 0x00B28000 || reads[0].Size != 4 {
		t.Fatalf("unexpected reads %+v", reads)
	}
}

func TestTwoLevelChain(t *testing.T) {
	f := newFixture(t)

	got, err := f.resolver.ResolveAddress(process.NewMemoryAddress(0x00B28498, 0x464, 0x10))
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x00300010 {
		t.Fatalf("got %s, want 0x300010", got.ToString())
	}

	reads := f.platform.Reads()
	if len(reads) != 2 || reads[0].Address != 0x00B28498 || reads[1].Address != 0x00200464 {
		t.Fatalf("unexpected reads %+v", reads)
	}
}

func TestNegativeOffset(t *testing.T) {
	f := newFixture(t)

	got, err := f.resolver.Resolve(0x00B28498, -0x10)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x001FFFF0 {
		t.Fatalf("got %s, want 0x1FFFF0", got.ToString())
	}
}

func TestHighHalfPointerIsUnsigned(t *testing.T) {
	f := newFixture(t)
	putUint32(f.image, 0x00B28000, 0x80000000)

	got, err := f.resolver.Resolve(0x00B28000, 4)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x80000004 {
		t.Fatalf("got %s, want 0x80000004", got.ToString())
	}
}

func TestBrokenChain(t *testing.T) {
	f := newFixture(t)
	// *(0x00300010) is 0, so the fourth hop reads unmapped address 0
	_, err := f.resolver.Resolve(0x00B28498, 0x464, 0x10, 0, 0)
	if !errors.Is(err, process.ErrReadFailure) {
		t.Fatalf("expected ErrReadFailure, got %v", err)
	}
	if n := len(f.platform.Reads()); n != 4 {
		t.Fatalf("%d reads, want 4", n)
	}
}

func TestReaderErrorIsReadFailure(t *testing.T) {
	cause := errors.New("handle gone")
	r := New(failingReader{cause})

	_, err := r.Resolve(0x1000, 4)
	if !errors.Is(err, process.ErrReadFailure) || !errors.Is(err, cause) {
		t.Fatalf("expected ErrReadFailure wrapping the cause, got %v", err)
	}
}

type failingReader struct{ err error }

func (f failingReader) ReadInt32(process.ProcessMemoryAddress) (int32, error) {
	return 0, f.err
}

func TestTrace(t *testing.T) {
	f := newFixture(t, WithTrace(true))

	hops, err := f.resolver.Trace(0x00B28498, 0x464, 0x10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hops) != 2 {
		t.Fatalf("%d hops, want 2", len(hops))
	}

	want := []Hop{
		{Address: 0x00B28498, Pointer: 0x00200000, Offset: 0x464, Result: 0x00200464},
		{Address: 0x00200464, Pointer: 0x00300000, Offset: 0x10, Result: 0x00300010},
	}
	for i := range want {
		if hops[i] != want[i] {
			t.Errorf("hop %d = %s, want %s", i, hops[i], want[i])
		}
	}

	hops, err = f.resolver.Trace(0x00B28498)
	if err != nil || len(hops) != 0 {
		t.Fatalf("empty trace = %v, %v", hops, err)
	}
}
