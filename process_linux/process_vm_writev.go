//go:build linux

package process_linux

import (
	"errors"
	"fmt"
	"math"
	"unsafe"

	"memtunnel/process"

	"golang.org/x/sys/unix"
)

// process_vm_writev uses the process_vm_writev syscall to write memory to another process
func process_vm_writev(
	pid process.ProcessID,
	localBuf []byte,
	remoteAddr process.ProcessMemoryAddress,
) (int, error) {
	if len(localBuf) == 0 {
		return 0, nil
	}

	localIov := unix.Iovec{Base: &localBuf[0]}
	localIov.SetLen(len(localBuf))

	remoteIov := unix.RemoteIovec{
		Base: uintptr(remoteAddr),
		Len:  len(localBuf),
	}

	n, _, errno := unix.Syscall6(
		unix.SYS_PROCESS_VM_WRITEV,
		uintptr(pid),
		uintptr(unsafe.Pointer(&localIov)),
		uintptr(1),
		uintptr(unsafe.Pointer(&remoteIov)),
		uintptr(1),
		uintptr(0),
	)

	if errno != 0 {
		return 0, fmt.Errorf("process_vm_writev failed: %w", errno)
	}

	return int(n), nil
}

// WriteMemory writes data to the process memory at the specified address.
//
// process_vm_writev honours page protections. When it faults, the write is retried
// through /proc/<pid>/mem, which the kernel allows on read-only private mappings
// (code and constant data) the same way WriteProcessMemory does on Windows.
func (p *LinuxPlatform) WriteMemory(h process.Handle, addr process.ProcessMemoryAddress, data []byte) (int, error) {
	oh, err := p.lookup(h)
	if err != nil {
		return 0, err
	}
	if !oh.rights.Has(process.AccessVMWrite) {
		return 0, fmt.Errorf("handle %d was not opened for writing", h)
	}

	// Copy the data to avoid modification during the write
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	written, err := process_vm_writev(oh.pid, dataCopy, addr)
	if err == nil || !errors.Is(err, unix.EFAULT) || uint64(addr) > math.MaxInt64 {
		return written, err
	}

	p.log.Debugln("process_vm_writev faulted at", addr.ToString(), "- retrying through", oh.mem.Name())

	written, perr := unix.Pwrite(int(oh.mem.Fd()), dataCopy, int64(addr))
	if perr != nil {
		return 0, fmt.Errorf("%w; pwrite %s: %w", err, oh.mem.Name(), perr)
	}
	return written, nil
}
