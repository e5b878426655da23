package session

import (
	"errors"
	"testing"

	"memtunnel/process"
	"memtunnel/process_blob"
)

func newTarget() (*process_blob.Platform, *process_blob.ProcessImage) {
	p := process_blob.NewPlatform()
	img := p.AddProcess(4242, "game")
	img.AddModule("game.exe", 0x400000)
	img.AddModule("engine.dll", 0x10000000)
	img.Map(0x400000, 0x1000, true)
	return p, img
}

func TestOpenAndDetach(t *testing.T) {
	p, _ := newTarget()

	s, err := Open(p, 4242)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !s.IsAttached() || s.Handle() == process.InvalidHandle {
		t.Fatal("session not attached after Open")
	}
	if s.BaseAddress() != 0x400000 {
		t.Fatalf("base = %s, want 0x400000", s.BaseAddress().ToString())
	}

	h := s.Handle()
	if err := s.Detach(); err != nil {
		t.Fatalf("Detach: %v", err)
	}
	if err := s.Detach(); err != nil {
		t.Fatalf("second Detach: %v", err)
	}
	if p.CloseCount(h) != 1 {
		t.Fatalf("handle closed %d times, want 1", p.CloseCount(h))
	}
	if s.IsAttached() || s.BaseAddress() != 0 {
		t.Fatal("session still reports a handle or base after Detach")
	}
}

func TestAttachIsIdempotent(t *testing.T) {
	p, _ := newTarget()
	s := New(p, 4242)
	if s.IsAttached() {
		t.Fatal("New attached eagerly")
	}

	if err := s.Attach(); err != nil {
		t.Fatal(err)
	}
	h := s.Handle()
	if err := s.Attach(); err != nil {
		t.Fatal(err)
	}
	if s.Handle() != h || p.OpenHandles() != 1 {
		t.Fatalf("second Attach acquired another handle (%d open)", p.OpenHandles())
	}
	s.Detach()
}

func TestOpenByName(t *testing.T) {
	p, _ := newTarget()
	second := p.AddProcess(5000, "game")
	second.AddModule("game.exe", 0x800000)

	s, err := OpenByName(p, "game")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Detach()

	if s.PID() != 4242 {
		t.Fatalf("attached to pid %d, want the lowest pid 4242", s.PID())
	}

	list, err := ListByName(p, "game")
	if err != nil || len(list) != 2 {
		t.Fatalf("ListByName = %v, %v", list, err)
	}
}

func TestOpenByNameNotFound(t *testing.T) {
	p, _ := newTarget()

	_, err := OpenByName(p, "nonexistent")
	if !errors.Is(err, process.ErrProcessNotFound) {
		t.Fatalf("expected ErrProcessNotFound, got %v", err)
	}
	if p.OpenHandles() != 0 {
		t.Fatalf("%d handles left open", p.OpenHandles())
	}
}

func TestOpenUnknownPID(t *testing.T) {
	p, _ := newTarget()

	if _, err := Open(p, 1); !errors.Is(err, process.ErrProcessNotFound) {
		t.Fatalf("expected ErrProcessNotFound, got %v", err)
	}
}

func TestAttachDenied(t *testing.T) {
	p, img := newTarget()
	img.SetDenied(true)

	_, err := Open(p, 4242)
	if !errors.Is(err, process.ErrAttachFailure) {
		t.Fatalf("expected ErrAttachFailure, got %v", err)
	}
	if !errors.Is(err, process_blob.ErrAccessDenied) {
		t.Fatalf("cause lost: %v", err)
	}
}

func TestAttachWithoutModulesReleasesHandle(t *testing.T) {
	p := process_blob.NewPlatform()
	p.AddProcess(7, "bare")

	if _, err := Open(p, 7); !errors.Is(err, process.ErrAttachFailure) {
		t.Fatalf("expected ErrAttachFailure, got %v", err)
	}
	if p.OpenHandles() != 0 {
		t.Fatalf("%d handles left open", p.OpenHandles())
	}
}

func TestModuleBase(t *testing.T) {
	p, _ := newTarget()
	s := New(p, 4242)

	if _, err := s.ModuleBase("engine.dll"); !errors.Is(err, process.ErrProcessNotOpen) {
		t.Fatalf("expected ErrProcessNotOpen before attach, got %v", err)
	}

	if err := s.Attach(); err != nil {
		t.Fatal(err)
	}
	defer s.Detach()

	base, err := s.ModuleBase("ENGINE.DLL")
	if err != nil {
		t.Fatal(err)
	}
	if base != 0x10000000 {
		t.Fatalf("engine.dll at %s", base.ToString())
	}
}

func TestCloseGraceful(t *testing.T) {
	p, img := newTarget()
	s, err := Open(p, 4242)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Close(0); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if img.Alive() {
		t.Fatal("process still alive after Close")
	}
	if s.IsAttached() || p.OpenHandles() != 0 {
		t.Fatal("Close did not detach")
	}
}

func TestCloseKillsStubbornProcess(t *testing.T) {
	p, img := newTarget()
	img.SetStubborn(true)

	s, err := Open(p, 4242)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(1); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if img.Alive() {
		t.Fatal("stubborn process survived Close")
	}
	if s.IsAttached() {
		t.Fatal("Close did not detach")
	}
}

func TestKill(t *testing.T) {
	p, img := newTarget()
	s, err := Open(p, 4242)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Kill(); err != nil {
		t.Fatal(err)
	}
	if img.Alive() || s.IsAttached() {
		t.Fatal("Kill did not end the process and detach")
	}
}
