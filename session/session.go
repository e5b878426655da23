// Package session manages the lifecycle of a memory-access handle to another process.
//
// A Session owns exactly one handle while attached. Callers release it with Detach (or
// Close/Kill) on every exit path, typically with defer; a finalizer only acts as a backstop
// for sessions that become unreachable while still attached.
//
// Attach, Detach, Close and Kill must not race each other. Handle, BaseAddress and the
// memory operations built on them may be used from several goroutines once attached.
package session

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"memtunnel/process"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// DefaultCloseTimeout is how long Close waits for the target to exit before killing it
const DefaultCloseTimeout = 4 * time.Second

// Session is an attachment to one external process
type Session struct {
	platform process.Platform
	pid      process.ProcessID
	log      *logger.Logger

	mu     sync.Mutex
	handle process.Handle
	base   process.ProcessMemoryAddress
}

// Option configures a Session
type Option func(*Session)

// WithLogger replaces the session's logger
func WithLogger(l *logger.Logger) Option {
	return func(s *Session) {
		s.log = l
	}
}

func notOpenLogger() *logger.Logger {
	return logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "session-not-open"))
}

// New creates a detached session for pid. Nothing is acquired until Attach.
func New(platform process.Platform, pid process.ProcessID, opts ...Option) *Session {
	s := &Session{
		platform: platform,
		pid:      pid,
		log:      notOpenLogger(),
		handle:   process.InvalidHandle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates a session for pid and attaches it
func Open(platform process.Platform, pid process.ProcessID, opts ...Option) (*Session, error) {
	s := New(platform, pid, opts...)
	if err := s.Attach(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenByName attaches to the first process (lowest PID) whose name matches
func OpenByName(platform process.Platform, name string, opts ...Option) (*Session, error) {
	list, err := ListByName(platform, name)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: no process named %q", process.ErrProcessNotFound, name)
	}

	return Open(platform, list[0].PID, opts...)
}

// ListByName returns every running process with the given name, ordered by PID
func ListByName(finder process.ProcessFinder, name string) ([]process.ProcessInfo, error) {
	list, err := finder.FindProcessByName(name)
	if err != nil {
		return nil, fmt.Errorf("find process %q: %w", name, err)
	}
	return list, nil
}

// Attach acquires a handle with read, write and VM-operation rights and records the
// main module base. Attaching an attached session is a no-op.
func (s *Session) Attach() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != process.InvalidHandle {
		return nil
	}

	if _, err := s.platform.FindProcessByPID(s.pid); err != nil {
		if errors.Is(err, process.ErrProcessNotFound) {
			return err
		}
		return fmt.Errorf("%w: pid %d: %w", process.ErrProcessNotFound, s.pid, err)
	}

	h, err := s.platform.OpenProcess(process.AccessMemory, s.pid)
	if err != nil {
		if errors.Is(err, process.ErrProcessNotFound) {
			return err
		}
		return fmt.Errorf("%w: pid %d: %w", process.ErrAttachFailure, s.pid, err)
	}
	if h == process.InvalidHandle {
		return fmt.Errorf("%w: pid %d: no handle returned", process.ErrAttachFailure, s.pid)
	}

	base, err := s.platform.MainModuleBase(s.pid)
	if err != nil {
		if cerr := s.platform.CloseHandle(h); cerr != nil {
			s.log.Warn("Failed to release handle after attach failure: ", cerr)
		}
		return fmt.Errorf("%w: pid %d: main module: %w", process.ErrAttachFailure, s.pid, err)
	}

	s.handle = h
	s.base = base
	s.log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("session-%d", s.pid)))

	runtime.SetFinalizer(s, (*Session).finalize)

	s.log.Infoln("Attached, main module at", base.ToString())

	return nil
}

// Detach releases the handle if one is held. It never fails: a handle the platform
// refuses to close is logged and forgotten.
func (s *Session) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.detachLocked()
	return nil
}

func (s *Session) detachLocked() {
	if s.handle == process.InvalidHandle {
		return
	}

	h := s.handle
	s.handle = process.InvalidHandle
	s.base = 0
	runtime.SetFinalizer(s, nil)

	if err := s.platform.CloseHandle(h); err != nil {
		s.log.Warn("CloseHandle failed: ", err)
	}

	s.log.Infoln("Detached")
	s.log = notOpenLogger()
}

// finalize is the backstop for sessions dropped while attached
func (s *Session) finalize() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == process.InvalidHandle {
		return
	}
	s.log.Warn("Session collected while attached; call Detach explicitly")
	s.detachLocked()
}

// Handle returns the current handle, or process.InvalidHandle when detached
func (s *Session) Handle() process.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// IsAttached reports whether a handle is held
func (s *Session) IsAttached() bool {
	return s.Handle() != process.InvalidHandle
}

// BaseAddress returns the main module base, 0 until attached
func (s *Session) BaseAddress() process.ProcessMemoryAddress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base
}

// PID returns the target process id
func (s *Session) PID() process.ProcessID {
	return s.pid
}

// Platform returns the platform the session was created with
func (s *Session) Platform() process.Platform {
	return s.platform
}

// Logger returns the session's current logger
func (s *Session) Logger() *logger.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log
}

// ModuleBase returns the load address of a module of the target, matched case-insensitively
func (s *Session) ModuleBase(module string) (process.ProcessMemoryAddress, error) {
	if !s.IsAttached() {
		return 0, process.ErrProcessNotOpen
	}
	base, err := s.platform.ModuleBase(s.pid, module)
	if err != nil {
		return 0, fmt.Errorf("module base of %q: %w", module, err)
	}
	return base, nil
}

// Close asks the target to exit, waits up to timeout (DefaultCloseTimeout when zero),
// kills it if it is still running and detaches.
func (s *Session) Close(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultCloseTimeout
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.detachLocked()

	if err := s.platform.Terminate(s.pid); err != nil {
		s.log.Warn("Terminate failed: ", err)
	} else if s.platform.WaitExit(s.pid, timeout) {
		s.log.Infoln("Process exited")
		return nil
	}

	s.log.Infoln("Process still running after", timeout, "- killing it")
	return s.killLocked()
}

// Kill ends the target immediately, waits for it and detaches
func (s *Session) Kill() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.detachLocked()

	return s.killLocked()
}

func (s *Session) killLocked() error {
	if err := s.platform.Kill(s.pid); err != nil {
		s.log.Warn("Kill failed: ", err)
		return fmt.Errorf("kill process %d: %w", s.pid, err)
	}
	if !s.platform.WaitExit(s.pid, DefaultCloseTimeout) {
		return fmt.Errorf("process %d did not exit after kill", s.pid)
	}
	return nil
}
