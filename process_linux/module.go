//go:build linux

package process_linux

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"memtunnel/process"
	"memtunnel/process/memory_map"
)

// moduleKey identifies a module of one process incarnation; the start time keeps a
// reused PID from hitting a stale entry.
type moduleKey struct {
	pid       process.ProcessID
	startTime uint64
	module    string
}

// MainModuleBase returns the lowest mapping of the file /proc/<pid>/exe points at
func (p *LinuxPlatform) MainModuleBase(pid process.ProcessID) (process.ProcessMemoryAddress, error) {
	return p.moduleBase(pid, "")
}

// ModuleBase returns the lowest mapping of the named module, e.g. "libc.so.6"
func (p *LinuxPlatform) ModuleBase(pid process.ProcessID, module string) (process.ProcessMemoryAddress, error) {
	if module == "" {
		return 0, fmt.Errorf("empty module name")
	}
	return p.moduleBase(pid, module)
}

func (p *LinuxPlatform) moduleBase(pid process.ProcessID, module string) (process.ProcessMemoryAddress, error) {
	st, err := readStat(int(pid))
	if err != nil {
		return 0, fmt.Errorf("%w: pid %d: %v", process.ErrProcessNotFound, pid, err)
	}

	key := moduleKey{pid: pid, startTime: st.startTime, module: module}
	if base, ok := p.modules.Get(key); ok {
		return base.(process.ProcessMemoryAddress), nil
	}

	target := module
	if target == "" {
		target, err = os.Readlink(filepath.Join("/proc", strconv.Itoa(int(pid)), "exe"))
		if err != nil {
			return 0, fmt.Errorf("failed to resolve executable of process %d: %w", pid, err)
		}
	}

	mm, err := memory_map.ReadMemoryMap(int(pid))
	if err != nil {
		return 0, fmt.Errorf("failed to read memory map: %w", err)
	}

	item, ok := memory_map.FindModule(mm, target)
	if !ok {
		return 0, fmt.Errorf("module %q not mapped in process %d", target, pid)
	}

	base := process.ProcessMemoryAddress(item.Address)
	p.modules.Add(key, base)

	p.log.Debugln("Module", target, "of process", pid, "is loaded at", base.ToString())

	return base, nil
}
