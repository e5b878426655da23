package accessor

import (
	"bytes"
	"errors"
	"testing"

	"memtunnel/process"
)

func TestAsciiZ(t *testing.T) {
	a, _, img, _ := newAccessor(t)

	if err := a.WriteAsciiZ(heap, "Player1"); err != nil {
		t.Fatal(err)
	}
	if got := img.Peek(heap, 8); !bytes.Equal(got, []byte("Player1\x00")) {
		t.Fatalf("wrote % x", got)
	}

	s, err := a.ReadAsciiZ(heap, 64)
	if err != nil || s != "Player1" {
		t.Fatalf("ReadAsciiZ = %q, %v", s, err)
	}

	s, err = a.ReadAsciiZ(heap, 4)
	if err != nil || s != "Play" {
		t.Fatalf("truncated ReadAsciiZ = %q, %v", s, err)
	}

	s, err = a.ReadAsciiZ(heap, 0)
	if err != nil || s != "" {
		t.Fatalf("zero-length ReadAsciiZ = %q, %v", s, err)
	}
}

func TestAsciiZReplacesHighBytes(t *testing.T) {
	a, _, img, _ := newAccessor(t)
	img.Poke(heap, []byte{'a', 0xE9, 'b', 0})

	s, err := a.ReadAsciiZ(heap, 16)
	if err != nil || s != "a?b" {
		t.Fatalf("ReadAsciiZ = %q, %v", s, err)
	}

	if got := EncodeAsciiZ("né"); !bytes.Equal(got, []byte{'n', '?', 0}) {
		t.Fatalf("EncodeAsciiZ = % x", got)
	}
}

func TestUtf16Z(t *testing.T) {
	a, _, img, _ := newAccessor(t)

	if err := a.WriteUtf16Z(heap, "Héllo"); err != nil {
		t.Fatal(err)
	}
	if got := img.Peek(heap, 4); !bytes.Equal(got, []byte{'H', 0, 0xE9, 0}) {
		t.Fatalf("wrote % x", got)
	}

	s, err := a.ReadUtf16Z(heap, 64)
	if err != nil || s != "Héllo" {
		t.Fatalf("ReadUtf16Z = %q, %v", s, err)
	}

	s, err = a.ReadUtf16Z(heap, 2)
	if err != nil || s != "Hé" {
		t.Fatalf("truncated ReadUtf16Z = %q, %v", s, err)
	}
}

func TestStringEndingAtMappingBoundary(t *testing.T) {
	a, _, img, _ := newAccessor(t, WithStringChunk(256))

	// terminator is the last mapped byte
	addr := heap + heapSize - 6
	img.Poke(addr, []byte("hello\x00"))

	s, err := a.ReadAsciiZ(addr, 256)
	if err != nil || s != "hello" {
		t.Fatalf("ReadAsciiZ = %q, %v", s, err)
	}
}

func TestStringRunningIntoUnmappedMemory(t *testing.T) {
	a, _, img, _ := newAccessor(t)

	addr := heap + heapSize - 4
	img.Poke(addr, []byte("abcd"))

	_, err := a.ReadAsciiZ(addr, 64)
	if !errors.Is(err, process.ErrReadFailure) {
		t.Fatalf("expected ErrReadFailure, got %v", err)
	}
}
