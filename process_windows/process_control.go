//go:build windows

package process_windows

import (
	"fmt"
	"time"

	"memtunnel/process"

	"golang.org/x/sys/windows"
)

// Terminate ends the process with exit code 0. Windows offers no signal a windowless
// process could handle, so this is as polite as it gets.
func (p *WindowsPlatform) Terminate(pid process.ProcessID) error {
	return terminate(pid, 0)
}

// Kill ends the process with exit code 1
func (p *WindowsPlatform) Kill(pid process.ProcessID) error {
	return terminate(pid, 1)
}

func terminate(pid process.ProcessID, exitCode uint32) error {
	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		return fmt.Errorf("OpenProcess(%d) failed: %w", pid, err)
	}
	defer windows.CloseHandle(h)

	if err := windows.TerminateProcess(h, exitCode); err != nil {
		return fmt.Errorf("TerminateProcess(%d) failed: %w", pid, err)
	}
	return nil
}

// WaitExit waits on the process object. A process that cannot be opened is treated as gone.
func (p *WindowsPlatform) WaitExit(pid process.ProcessID, timeout time.Duration) bool {
	h, err := windows.OpenProcess(windows.SYNCHRONIZE, false, uint32(pid))
	if err != nil {
		return true
	}
	defer windows.CloseHandle(h)

	event, err := windows.WaitForSingleObject(h, uint32(timeout.Milliseconds()))
	return err == nil && event == windows.WAIT_OBJECT_0
}
