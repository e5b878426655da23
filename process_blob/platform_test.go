package process_blob

import (
	"bytes"
	"errors"
	"testing"

	"memtunnel/process"
)

func newTestPlatform() (*Platform, *ProcessImage) {
	p := NewPlatform()
	img := p.AddProcess(100, "game")
	img.AddModule("game.exe", 0x400000)
	img.Map(0x400000, 0x1000, false)
	img.Map(0x401000, 0x1000, true)
	return p, img
}

func TestReadAcrossRegions(t *testing.T) {
	p, img := newTestPlatform()
	img.Poke(0x400FFE, []byte{1, 2, 3, 4})

	h, err := p.OpenProcess(process.AccessMemory, 100)
	if err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 4)
	n, err := p.ReadMemory(h, 0x400FFE, buf)
	if err != nil || n != 4 {
		t.Fatalf("ReadMemory = %d, %v", n, err)
	}
	if !bytes.Equal(buf, []byte{1, 2, 3, 4}) {
		t.Fatalf("read % x", buf)
	}

	n, err = p.ReadMemory(h, 0x401FFE, buf)
	if err != nil || n != 2 {
		t.Fatalf("read at end of mapping = %d, %v; want 2 bytes", n, err)
	}

	if _, err := p.ReadMemory(h, 0x500000, buf); !errors.Is(err, ErrAddressNotMapped) {
		t.Fatalf("expected ErrAddressNotMapped, got %v", err)
	}

	if got := len(p.Reads()); got != 3 {
		t.Fatalf("read log has %d entries, want 3", got)
	}
}

func TestWriteStopsAtReadOnly(t *testing.T) {
	p, img := newTestPlatform()
	h, _ := p.OpenProcess(process.AccessMemory, 100)

	n, err := p.WriteMemory(h, 0x400010, []byte{9, 9})
	if err != nil || n != 0 {
		t.Fatalf("write to read-only region = %d, %v", n, err)
	}

	n, err = p.WriteMemory(h, 0x401010, []byte{9, 9})
	if err != nil || n != 2 {
		t.Fatalf("write = %d, %v", n, err)
	}
	if !bytes.Equal(img.Peek(0x401010, 2), []byte{9, 9}) {
		t.Fatal("write did not land")
	}
}

func TestHandleLifecycle(t *testing.T) {
	p, img := newTestPlatform()

	h, err := p.OpenProcess(process.AccessMemory, 100)
	if err != nil {
		t.Fatal(err)
	}
	if p.OpenHandles() != 1 {
		t.Fatalf("open handles = %d", p.OpenHandles())
	}
	if err := p.CloseHandle(h); err != nil {
		t.Fatal(err)
	}
	if err := p.CloseHandle(h); err == nil {
		t.Fatal("second close of the same handle succeeded")
	}
	if p.CloseCount(h) != 2 {
		t.Fatalf("close count = %d", p.CloseCount(h))
	}

	img.SetDenied(true)
	if _, err := p.OpenProcess(process.AccessMemory, 100); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}

	if _, err := p.OpenProcess(process.AccessMemory, 999); !errors.Is(err, process.ErrProcessNotFound) {
		t.Fatalf("expected ErrProcessNotFound, got %v", err)
	}
}

func TestFindAndTerminate(t *testing.T) {
	p := NewPlatform()
	p.AddProcess(30, "game")
	p.AddProcess(10, "game").SetStubborn(true)
	p.AddProcess(20, "other")

	list, err := p.FindProcessByName("game")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].PID != 10 || list[1].PID != 30 {
		t.Fatalf("unexpected list %+v", list)
	}

	p.Terminate(30)
	if !p.WaitExit(30, 0) {
		t.Fatal("process 30 did not exit after Terminate")
	}

	p.Terminate(10)
	if p.WaitExit(10, 0) {
		t.Fatal("stubborn process exited after Terminate")
	}
	p.Kill(10)
	if !p.WaitExit(10, 0) {
		t.Fatal("stubborn process survived Kill")
	}

	all, _ := p.FindAllProcesses()
	if len(all) != 1 || all[0].PID != 20 {
		t.Fatalf("unexpected remaining processes %+v", all)
	}
}
