//go:build windows

package process_windows

import (
	"errors"
	"fmt"
	"unsafe"

	"memtunnel/process"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"golang.org/x/sys/windows"
)

var _ process.Platform = (*WindowsPlatform)(nil)

// WindowsPlatform implements process.Platform on top of the kernel32 process and memory API
type WindowsPlatform struct {
	log *logger.Logger
}

// New creates a new WindowsPlatform instance
func New() *WindowsPlatform {
	return &WindowsPlatform{
		log: logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "windows")),
	}
}

// OpenProcess calls OpenProcess; process.AccessRights share the PROCESS_VM_* bit values
func (p *WindowsPlatform) OpenProcess(rights process.AccessRights, pid process.ProcessID) (process.Handle, error) {
	h, err := windows.OpenProcess(uint32(rights), false, uint32(pid))
	if err != nil {
		if errors.Is(err, windows.ERROR_INVALID_PARAMETER) {
			return process.InvalidHandle, fmt.Errorf("%w: pid %d", process.ErrProcessNotFound, pid)
		}
		return process.InvalidHandle, fmt.Errorf("OpenProcess(%d) failed: %w", pid, err)
	}

	p.log.Debugln("Opened handle", uintptr(h), "for process", pid)

	return process.Handle(h), nil
}

func (p *WindowsPlatform) CloseHandle(h process.Handle) error {
	if err := windows.CloseHandle(windows.Handle(h)); err != nil {
		return fmt.Errorf("CloseHandle failed: %w", err)
	}
	return nil
}

// ReadMemory calls ReadProcessMemory. ERROR_PARTIAL_COPY is reported as a short count.
func (p *WindowsPlatform) ReadMemory(h process.Handle, addr process.ProcessMemoryAddress, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	var bytesRead uintptr
	err := windows.ReadProcessMemory(
		windows.Handle(h),
		uintptr(addr),
		&buf[0],
		uintptr(len(buf)),
		&bytesRead,
	)
	if err != nil && !errors.Is(err, windows.ERROR_PARTIAL_COPY) {
		return int(bytesRead), fmt.Errorf("ReadProcessMemory failed: %w", err)
	}

	return int(bytesRead), nil
}

// WriteMemory calls WriteProcessMemory. ERROR_PARTIAL_COPY is reported as a short count.
func (p *WindowsPlatform) WriteMemory(h process.Handle, addr process.ProcessMemoryAddress, data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}

	var bytesWritten uintptr
	err := windows.WriteProcessMemory(
		windows.Handle(h),
		uintptr(addr),
		&data[0],
		uintptr(len(data)),
		&bytesWritten,
	)
	if err != nil && !errors.Is(err, windows.ERROR_PARTIAL_COPY) {
		return int(bytesWritten), fmt.Errorf("WriteProcessMemory failed: %w", err)
	}

	return int(bytesWritten), nil
}

// sizeOf is used to fill the Size field Toolhelp32 entries require.
func sizeOf[T any]() uint32 {
	var t T
	return uint32(unsafe.Sizeof(t))
}
