//go:build linux

package process_linux

import (
	"errors"
	"syscall"
	"time"

	"memtunnel/process"
)

// Terminate sends SIGTERM, the polite request to exit
func (p *LinuxPlatform) Terminate(pid process.ProcessID) error {
	return signal(pid, syscall.SIGTERM)
}

// Kill sends SIGKILL
func (p *LinuxPlatform) Kill(pid process.ProcessID) error {
	return signal(pid, syscall.SIGKILL)
}

func signal(pid process.ProcessID, sig syscall.Signal) error {
	if pid <= 0 {
		return errors.New("invalid pid")
	}
	// Use raw syscall kill so it works for non-child processes.
	if err := syscall.Kill(int(pid), sig); err != nil {
		// ESRCH means it's already gone
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return err
	}
	return nil
}

// WaitExit waits until the PID disappears from /proc or until timeout.
// Returns true if the process exited within the timeout.
func (p *LinuxPlatform) WaitExit(pid process.ProcessID, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	tick := 25 * time.Millisecond
	for {
		if !procExists(int(pid)) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(tick)
		// Exponential-ish backoff up to 250ms to reduce pressure on /proc
		if tick < 250*time.Millisecond {
			tick += 10 * time.Millisecond
		}
	}
}
