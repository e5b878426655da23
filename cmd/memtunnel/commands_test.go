package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"memtunnel/process"
	"memtunnel/process_blob"
)

func newTestTarget() (*process_blob.Platform, *process_blob.ProcessImage) {
	p := process_blob.NewPlatform()
	img := p.AddProcess(321, "game")
	img.AddModule("game.exe", 0x00400000)
	img.Map(0x00400000, 0x1000, true)
	img.Map(0x00B28000, 0x1000, true)

	var ptr [4]byte
	binary.LittleEndian.PutUint32(ptr[:], 0x00400000)
	img.Poke(0x00B28498, ptr[:])
	return p, img
}

func run(t *testing.T, p process.Platform, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := newRootCommand(p, &out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestWriteThenRead(t *testing.T) {
	p, img := newTestTarget()

	if _, err := run(t, p, "--name", "game", "write", "int32", "00B28498", "100", "0x464"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := binary.LittleEndian.Uint32(img.Peek(0x00400464, 4)); got != 100 {
		t.Fatalf("memory holds %d", got)
	}

	out, err := run(t, p, "--pid", "321", "read", "int32", "00B28498", "0x464")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.TrimSpace(out) != "100" {
		t.Fatalf("read printed %q", out)
	}

	if p.OpenHandles() != 0 {
		t.Fatalf("%d handles left open", p.OpenHandles())
	}
}

func TestNegativeOffsetAfterDashes(t *testing.T) {
	p, img := newTestTarget()
	var ptr [4]byte
	binary.LittleEndian.PutUint32(ptr[:], 0x00400040)
	img.Poke(0x00B28498, ptr[:])

	if _, err := run(t, p, "--pid", "321", "write", "byte", "--", "00B28498", "7", "-0x20"); err != nil {
		t.Fatal(err)
	}
	if got := img.Peek(0x00400020, 1)[0]; got != 7 {
		t.Fatalf("memory holds %d", got)
	}

	out, err := run(t, p, "--pid", "321", "read", "byte", "--", "00B28498", "-0x20")
	if err != nil || strings.TrimSpace(out) != "7" {
		t.Fatalf("read = %q, %v", out, err)
	}
}

func TestWriteFloat(t *testing.T) {
	p, _ := newTestTarget()

	if _, err := run(t, p, "--pid", "321", "write", "float", "00B28010", "2.5"); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, p, "--pid", "321", "read", "float32", "00B28010")
	if err != nil || strings.TrimSpace(out) != "2.5" {
		t.Fatalf("read = %q, %v", out, err)
	}
}

func TestRelativeAddress(t *testing.T) {
	p, img := newTestTarget()
	img.Poke(0x00400010, []byte{0x2A})

	out, err := run(t, p, "--pid", "321", "--relative", "read", "byte", "10")
	if err != nil || strings.TrimSpace(out) != "42" {
		t.Fatalf("read = %q, %v", out, err)
	}
}

func TestPointerCommand(t *testing.T) {
	p, _ := newTestTarget()

	out, err := run(t, p, "--name", "game", "pointer", "00B28498", "0x464")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || lines[1] != "00400464" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestStringCommand(t *testing.T) {
	p, img := newTestTarget()
	img.Poke(0x00B28100, []byte("Hero\x00"))

	out, err := run(t, p, "--pid", "321", "string", "00B28100")
	if err != nil || strings.TrimSpace(out) != "Hero" {
		t.Fatalf("string = %q, %v", out, err)
	}
}

func TestDumpCommand(t *testing.T) {
	p, img := newTestTarget()
	img.Poke(0x00B28200, []byte("ABCD"))

	out, err := run(t, p, "--pid", "321", "--color", "never", "dump", "00B28200", "4")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "00b28200  41 42 43 44") || !strings.Contains(out, "|ABCD|") {
		t.Fatalf("unexpected dump %q", out)
	}
}

func TestPsAndBase(t *testing.T) {
	p, img := newTestTarget()
	img.AddModule("engine.dll", 0x10000000)
	p.AddProcess(400, "other")

	out, err := run(t, p, "ps", "game")
	if err != nil || !strings.Contains(out, "321") || strings.Contains(out, "other") {
		t.Fatalf("ps = %q, %v", out, err)
	}

	out, err = run(t, p, "--pid", "321", "base")
	if err != nil || strings.TrimSpace(out) != "00400000" {
		t.Fatalf("base = %q, %v", out, err)
	}

	out, err = run(t, p, "--pid", "321", "base", "engine.dll")
	if err != nil || strings.TrimSpace(out) != "10000000" {
		t.Fatalf("base engine.dll = %q, %v", out, err)
	}
}

func TestKillCommand(t *testing.T) {
	p, img := newTestTarget()
	img.SetStubborn(true)

	if _, err := run(t, p, "--pid", "321", "kill", "--graceful", "--timeout", "1ms"); err != nil {
		t.Fatal(err)
	}
	if img.Alive() {
		t.Fatal("process survived kill --graceful")
	}
}

func TestErrors(t *testing.T) {
	p, _ := newTestTarget()

	if _, err := run(t, p, "read", "int32", "00B28498"); err == nil {
		t.Fatal("read without --pid or --name succeeded")
	}
	if _, err := run(t, p, "--name", "nobody", "read", "int32", "00B28498"); !errors.Is(err, process.ErrProcessNotFound) {
		t.Fatalf("expected ErrProcessNotFound, got %v", err)
	}
	if _, err := run(t, p, "--pid", "321", "read", "int64", "00B28498"); !errors.Is(err, process.ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
	if _, err := run(t, p, "--pid", "321", "read", "int32", "0x00B28498"); !errors.Is(err, process.ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
	if _, err := run(t, p, "--pid", "321", "write", "int32", "00B28498", "abc"); err == nil {
		t.Fatal("write of a non-numeric value succeeded")
	}
}
